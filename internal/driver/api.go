package driver

//go:generate mockgen -source=api.go -destination=api_mock.go -package=driver

import (
	"context"
	"errors"

	"github.com/roach88/cloudsync/internal/resource"
)

// MetadataKey is the reserved LOCAL metadata key holding the REMOTE id.
const MetadataKey = "cloudsync:id"

var (
	// ErrNotFound is returned by the remote APIs when the resource is absent.
	ErrNotFound = errors.New("remote resource not found")
	// ErrNoRemoteID is returned when a LOCAL record carries no MetadataKey.
	ErrNoRemoteID = errors.New("no remote id in metadata")
)

// VolumeRequest is the REMOTE volume create body.
type VolumeRequest struct {
	Name             string
	SizeGB           int
	VolumeType       string
	AvailabilityZone string
	Metadata         map[string]string
}

// RemoteVolume is a REMOTE volume as last reported.
type RemoteVolume struct {
	ID     string
	Status string
}

// StoragePool is one REMOTE storage provider with its capacity. Group is the
// storage connectivity group the pool belongs to.
type StoragePool struct {
	Name            string
	Group           string
	TotalCapacityGB float64
	FreeCapacityGB  float64
}

// ServerRequest is the REMOTE server create body.
type ServerRequest struct {
	Name       string
	FlavorID   string
	ImageID    string
	NetworkIDs []string
	Metadata   map[string]string
}

// RemoteServer is a REMOTE server as last reported.
type RemoteServer struct {
	ID     string
	Status string
}

// VolumeAPI is the REMOTE block storage surface.
type VolumeAPI interface {
	CreateVolume(ctx context.Context, req VolumeRequest) (RemoteVolume, error)
	GetVolume(ctx context.Context, id string) (RemoteVolume, error)
	DeleteVolume(ctx context.Context, id string) error
	AttachVolume(ctx context.Context, volumeID, serverID, mountpoint string) error
	DetachVolume(ctx context.Context, volumeID, serverID string) error
	ListStoragePools(ctx context.Context) ([]StoragePool, error)
}

// ComputeAPI is the REMOTE compute surface.
type ComputeAPI interface {
	CreateServer(ctx context.Context, req ServerRequest) (RemoteServer, error)
	GetServer(ctx context.Context, id string) (RemoteServer, error)
	DeleteServer(ctx context.Context, id string) error
	StartServer(ctx context.Context, id string) error
	StopServer(ctx context.Context, id string) error
	RebootServer(ctx context.Context, id string, hard bool) error
}

// RecordStore persists metadata on the LOCAL volume or instance record.
type RecordStore interface {
	SaveMetadata(ctx context.Context, localID string, metadata map[string]string) error
}

// NetworkTranslator resolves LOCAL network ids. *store.Store implements it.
type NetworkTranslator interface {
	Translate(ctx context.Context, kind resource.Kind, from resource.Side, id string) (string, error)
}
