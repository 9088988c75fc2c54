package capture

import (
	"fmt"
	"strconv"
	"strings"
)

// Mask is a bitwise combination of runtime error kinds.
type Mask uint32

const (
	Error            Mask = 1
	Warning          Mask = 2
	Parse            Mask = 4
	Notice           Mask = 8
	CoreError        Mask = 16
	CoreWarning      Mask = 32
	CompileError     Mask = 64
	CompileWarning   Mask = 128
	UserError        Mask = 256
	UserWarning      Mask = 512
	UserNotice       Mask = 1024
	Strict           Mask = 2048
	RecoverableError Mask = 4096
	Deprecated       Mask = 8192
	UserDeprecated   Mask = 16384
)

// DefaultMask is used when no handled error types are configured.
// Notices and deprecations are left out.
const DefaultMask = Error | Warning | Parse | CoreError | CoreWarning |
	CompileError | CompileWarning | UserError | UserWarning | Strict | RecoverableError

var maskNames = []struct {
	flag Mask
	name string
}{
	{Error, "Error"},
	{Warning, "Warning"},
	{Parse, "Parse"},
	{Notice, "Notice"},
	{CoreError, "CoreError"},
	{CoreWarning, "CoreWarning"},
	{CompileError, "CompileError"},
	{CompileWarning, "CompileWarning"},
	{UserError, "UserError"},
	{UserWarning, "UserWarning"},
	{UserNotice, "UserNotice"},
	{Strict, "Strict"},
	{RecoverableError, "RecoverableError"},
	{Deprecated, "Deprecated"},
	{UserDeprecated, "UserDeprecated"},
}

// Has reports whether every bit of flag is set in m.
func (m Mask) Has(flag Mask) bool {
	return flag != 0 && m&flag == flag
}

func (m Mask) String() string {
	if m == 0 {
		return "0"
	}

	var (
		names []string
		rest  = m
	)
	for _, n := range maskNames {
		if m&n.flag != 0 {
			names = append(names, n.name)
			rest &^= n.flag
		}
	}
	if rest != 0 {
		names = append(names, strconv.FormatUint(uint64(rest), 10))
	}

	return strings.Join(names, "|")
}

// ParseMask accepts either a decimal bitmask ("7073") or flag names joined
// with "|" ("Error|Warning"). Names are matched case-insensitively.
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty error mask")
	}

	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return Mask(n), nil
	}

	var m Mask
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		flag, ok := lookupFlag(part)
		if !ok {
			return 0, fmt.Errorf("unknown error kind %q", part)
		}
		m |= flag
	}

	return m, nil
}

func lookupFlag(name string) (Mask, bool) {
	if n, err := strconv.ParseUint(name, 10, 32); err == nil {
		return Mask(n), true
	}
	for _, n := range maskNames {
		if strings.EqualFold(n.name, name) {
			return n.flag, true
		}
	}

	return 0, false
}
