package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownProgram is returned for processors texloop does not know how to drive.
var ErrUnknownProgram = errors.New("config: unknown program")

// Program describes a main typesetting processor.
type Program struct {
	Name       string
	Executable string
	// Intermediate is set for processors that emit DVI and need a conversion
	// step before a PDF exists.
	Intermediate bool
}

var programs = map[string]Program{
	"pdflatex": {Name: "pdflatex", Executable: "pdflatex"},
	"xelatex":  {Name: "xelatex", Executable: "xelatex"},
	"lualatex": {Name: "lualatex", Executable: "lualatex"},
	"latex":    {Name: "latex", Executable: "latex", Intermediate: true},
	"platex":   {Name: "platex", Executable: "platex", Intermediate: true},
	"uplatex":  {Name: "uplatex", Executable: "uplatex", Intermediate: true},
}

// LookupProgram resolves a processor by name (case-insensitive).
func LookupProgram(name string) (Program, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	prog, ok := programs[key]
	if !ok {
		return Program{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownProgram, name, strings.Join(ProgramNames(), ", "))
	}
	return prog, nil
}

// ProgramNames lists supported processors in sorted order.
func ProgramNames() []string {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
