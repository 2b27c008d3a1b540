package resource

import (
	"fmt"
	"strings"
)

// Kind identifies one of the three synchronized resource classes.
type Kind string

const (
	KindNetwork Kind = "network"
	KindSubnet  Kind = "subnet"
	KindPort    Kind = "port"
)

// Kinds lists all kinds in full-sync order (parents before children).
var Kinds = []Kind{KindNetwork, KindSubnet, KindPort}

// ParseKind accepts singular and plural forms ("network", "networks").
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch strings.TrimSuffix(s, "s") {
	case "network":
		return KindNetwork, nil
	case "subnet":
		return KindSubnet, nil
	case "port":
		return KindPort, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// Side names one of the two synchronized clouds.
type Side string

const (
	Local  Side = "LOCAL"
	Remote Side = "REMOTE"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Local {
		return Remote
	}
	return Local
}

// Valid reports whether s is LOCAL or REMOTE.
func (s Side) Valid() bool {
	return s == Local || s == Remote
}

// ParseSide is case-insensitive.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Local:
		return Local, nil
	case Remote:
		return Remote, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// Status is the lifecycle state of a mapping row.
type Status string

const (
	StatusCreating Status = "CREATING"
	StatusActive   Status = "ACTIVE"
	StatusDeleting Status = "DELETING"
)
