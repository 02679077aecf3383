package domain

import (
	"strings"

	"github.com/kapu/namedivider-go/internal/util"
)

type Mode string

const (
	ModeBasic Mode = "basic"
	ModeGBDT  Mode = "gbdt"
)

// DefaultMode is what the server assumes when a request omits the mode.
const DefaultMode = ModeBasic

func (m Mode) String() string {
	return string(m)
}

func (m Mode) IsValid() bool {
	switch m {
	case ModeBasic, ModeGBDT:
		return true
	default:
		return false
	}
}

// OrDefault returns DefaultMode for the empty mode and m otherwise.
func (m Mode) OrDefault() Mode {
	if m == "" {
		return DefaultMode
	}
	return m
}

// ParseMode accepts "basic" and "gbdt" case-insensitively; an empty string
// yields DefaultMode.
func ParseMode(s string) (Mode, error) {
	m := Mode(util.Normalize(s)).OrDefault()
	if err := ValidateMode(m); err != nil {
		return "", err
	}
	return m, nil
}

// DividedName is one segmented full name.
type DividedName struct {
	Family    string  `json:"family"`
	Given     string  `json:"given"`
	Separator string  `json:"separator"`
	Score     float64 `json:"score"`
	Algorithm string  `json:"algorithm"`
}

// String joins family and given with the separator chosen by the algorithm.
func (d DividedName) String() string {
	return d.Family + d.Separator + d.Given
}

type DivideRequest struct {
	Names []string `json:"names"`
	Mode  Mode     `json:"mode,omitempty"`
}

// NewDivideRequest copies names so later changes by the caller cannot leak
// into an in-flight request.
func NewDivideRequest(names []string, mode Mode) DivideRequest {
	copied := make([]string, len(names))
	copy(copied, names)
	return DivideRequest{
		Names: copied,
		Mode:  mode.OrDefault(),
	}
}

type DivideResponse struct {
	DividedNames []DividedName `json:"divided_names"`
}

// Comparison pairs the results of both algorithms over the same names.
type Comparison struct {
	Names []string
	Basic []DividedName
	GBDT  []DividedName
}

// Agreements counts positions where both algorithms chose the same split.
func (c *Comparison) Agreements() int {
	if c == nil {
		return 0
	}
	n := 0
	for i := range c.Basic {
		if i >= len(c.GBDT) {
			break
		}
		if c.Basic[i].Family == c.GBDT[i].Family && c.Basic[i].Given == c.GBDT[i].Given {
			n++
		}
	}
	return n
}

type HealthStatus struct {
	Health string `json:"health"`
}

func (h *HealthStatus) IsOK() bool {
	return h != nil && strings.EqualFold(h.Health, "OK")
}
