package script

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// optionInput is what a renderer sees: the value, the resolved core count
// and whether the value came from the option table rather than the target.
type optionInput struct {
	value     cty.Value
	cores     int64
	defaulted bool
}

// renderer turns a validated value into the argument of one `#$` directive.
// An empty result with a nil error means the directive is omitted.
type renderer func(c *Compiler, in optionInput) (string, error)

type optionSpec struct {
	name string
	// def is used when the target leaves the option unset. cty.NilVal means
	// the directive is omitted.
	def    cty.Value
	render renderer
}

// optionTable lists the recognized options in the order their defaults are
// appended to the script.
var optionTable = []optionSpec{
	{name: "cores", def: cty.NumberIntVal(1), render: renderCores},
	{name: "memory", def: cty.StringVal("1g"), render: renderMemory},
	{name: "walltime", def: cty.StringVal("01:00:00"), render: renderWalltime},
	{name: "queue", def: cty.NilVal, render: renderFlag("-q")},
	{name: "account", def: cty.NilVal, render: renderFlag("-P")},
}

func lookupOption(name string) (optionSpec, bool) {
	for _, spec := range optionTable {
		if spec.name == name {
			return spec, true
		}
	}
	return optionSpec{}, false
}

// SupportedOptions returns the option keys the compiler accepts.
func SupportedOptions() []string {
	names := make([]string, 0, len(optionTable))
	for _, spec := range optionTable {
		names = append(names, spec.name)
	}
	return names
}

var (
	memoryPattern   = regexp.MustCompile(`^([0-9]+)([A-Za-z]?)$`)
	walltimePattern = regexp.MustCompile(`^[0-9]+(:[0-9]+){0,2}$`)
)

func asString(v cty.Value) (string, error) {
	converted, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("expected a string: %w", err)
	}
	var s string
	if err := gocty.FromCtyValue(converted, &s); err != nil {
		return "", err
	}
	return s, nil
}

func asCores(v cty.Value) (int64, error) {
	converted, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, fmt.Errorf("expected a whole number: %w", err)
	}
	var n int64
	if err := gocty.FromCtyValue(converted, &n); err != nil {
		return 0, fmt.Errorf("expected a whole number: %w", err)
	}
	if n < 1 {
		return 0, fmt.Errorf("must be a positive integer, got %d", n)
	}
	return n, nil
}

func renderCores(c *Compiler, in optionInput) (string, error) {
	n, err := asCores(in.value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("-pe %s %d", c.parallelEnvironment(), n), nil
}

// smallerUnit maps a Grid Engine memory suffix to the next smaller one and
// the factor between them. Lower case suffixes are powers of 1000, upper case
// powers of 1024.
var smallerUnit = map[string]struct {
	unit   string
	factor int64
}{
	"g": {"m", 1000}, "m": {"k", 1000}, "k": {"", 1000},
	"G": {"M", 1024}, "M": {"K", 1024}, "K": {"", 1024},
}

// renderMemory converts the total memory of a target into the per-core value
// that h_vmem expects. An explicit amount that rounds down to zero per core is
// rejected; the default is rescaled to a smaller unit instead.
func renderMemory(_ *Compiler, in optionInput) (string, error) {
	s, err := asString(in.value)
	if err != nil {
		return "", err
	}
	m := memoryPattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("expected <integer><unit> such as 8g, got %q", s)
	}
	total, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("amount %q out of range", m[1])
	}
	unit := m[2]
	perCore := total / in.cores
	for perCore == 0 && in.defaulted {
		next, ok := smallerUnit[unit]
		if !ok {
			break
		}
		total, unit = total*next.factor, next.unit
		perCore = total / in.cores
	}
	if perCore == 0 {
		return "", fmt.Errorf("%s split over %d cores rounds down to 0%s; request at least %d%s",
			s, in.cores, m[2], in.cores, m[2])
	}
	return fmt.Sprintf("-l h_vmem=%d%s", perCore, unit), nil
}

func renderWalltime(_ *Compiler, in optionInput) (string, error) {
	s, err := asString(in.value)
	if err != nil {
		return "", err
	}
	if !walltimePattern.MatchString(s) {
		return "", fmt.Errorf("expected seconds or [[H:]M:]S, got %q", s)
	}
	return "-l h_rt=" + s, nil
}

func renderFlag(flag string) renderer {
	return func(_ *Compiler, in optionInput) (string, error) {
		s, err := asString(in.value)
		if err != nil {
			return "", err
		}
		if s == "" {
			return "", fmt.Errorf("must not be empty")
		}
		return flag + " " + s, nil
	}
}
