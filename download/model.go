package download

import (
	"fmt"
	"strings"
	"time"
)

// Method selects how a resource is fetched.
type Method int

const (
	// MethodAuto tries the external tool without bootstrapping, then the
	// internal HTTP transfer, then the external tool with bootstrapping.
	MethodAuto Method = iota
	MethodInternal
	MethodExternal
	MethodExternalNoFetch
)

var methodNames = map[Method]string{
	MethodAuto:            "auto",
	MethodInternal:        "internal",
	MethodExternal:        "external-tool",
	MethodExternalNoFetch: "external-tool-no-fetch",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod returns the Method named s.
func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return MethodAuto, nil
	}

	for m, name := range methodNames {
		if name == s {
			return m, nil
		}
	}

	return 0, fmt.Errorf("unknown download method %q", s)
}

func (m Method) MarshalText() ([]byte, error) {
	if !m.valid() {
		return nil, fmt.Errorf("unknown download method %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(b []byte) error {
	parsed, err := ParseMethod(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Method) valid() bool {
	_, ok := methodNames[m]
	return ok
}

// Request describes a single download. It is not modified by Download.
type Request struct {
	URL  string `json:"url" yaml:"url" validate:"required,url"`
	Dest string `json:"dest" yaml:"dest" validate:"required"`

	// Timeout bounds connecting and every individual read. A read that
	// exceeds it is treated as a stall and the transfer reconnects.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gt=0"`

	AllowContinue bool `json:"continue" yaml:"continue"`
	UseTmp        bool `json:"use_tmp" yaml:"use_tmp"`

	// Checksum is a hex digest, optionally prefixed with its algorithm
	// ("sha256:..."). Without a prefix the algorithm follows from the
	// digest length, md5 otherwise.
	Checksum        string `json:"checksum" yaml:"checksum" validate:"omitempty,checksum"`
	ChecksumSidecar bool   `json:"checksum_sidecar" yaml:"checksum_sidecar"`

	Callback         Callback      `json:"-" yaml:"-"`
	CallbackInterval time.Duration `json:"callback_interval" yaml:"callback_interval" validate:"gte=0"`

	Method Method `json:"method" yaml:"method" validate:"method"`
}

// Progress is a snapshot of a running transfer handed to a Callback.
type Progress struct {
	Label    string
	Position int64
	// Total is 0 when the size is unknown.
	Total  int64
	Speed  float64
	Blocks int64
	Calls  int64
}

// Callback receives progress updates. It is never invoked concurrently
// for the same download and always receives a final call on success.
type Callback func(Progress)
