// Package harness runs reconciliation scenarios written in YAML.
//
// A scenario seeds two in-memory clouds and an in-memory mapping store,
// feeds events to a real reconciler, and checks assertions over the calls
// the clouds received and the final mapping rows:
//
//	name: s1_create_from_local
//	setup:
//	  local:
//	    - {kind: network, id: L1, attrs: {name: net100, network_type: vlan, segmentation_id: 100}}
//	events:
//	  - {origin: LOCAL, type: create, kind: network, id: L1}
//	assertions:
//	  - {type: mapping, kind: network, sync_key: vlan_100, expect: {remote_id: R1, status: ACTIVE}}
//
// RunWithGolden additionally compares a canonical JSON snapshot of the
// outcome with testdata/golden/<name>.golden. The cloudsync validate command
// runs scenario files through Run.
package harness
