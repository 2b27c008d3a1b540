package harness

import "github.com/roach88/cloudsync/internal/resource"

// CallRecord is one mutating request a scenario caused on a fake cloud.
type CallRecord struct {
	Side  resource.Side
	Op    string
	Kind  resource.Kind
	ID    string
	Attrs resource.Attrs
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Calls lists LOCAL calls, then REMOTE calls, each in issue order.
	Calls []CallRecord `json:"calls"`

	// Mappings is the final store content, ordered as store.Dump orders it.
	Mappings []resource.Mapping `json:"mappings"`

	// Objects holds the final objects of both clouds, keyed by side.
	Objects map[resource.Side][]resource.Object `json:"-"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Calls:    []CallRecord{},
		Mappings: []resource.Mapping{},
		Objects:  make(map[resource.Side][]resource.Object),
		Errors:   []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// CallsOn returns the calls made on side, optionally restricted to op.
func (r *Result) CallsOn(side resource.Side, op string) []CallRecord {
	var out []CallRecord
	for _, c := range r.Calls {
		if c.Side == side && (op == "" || c.Op == op) {
			out = append(out, c)
		}
	}
	return out
}
