// Package index selects the active indexing subsystem (glossaries,
// nomenclature or a plain index) and schedules its companion tool when the
// processor wrote new index data.
package index

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kingrea/texloop/internal/artifact"
)

// Subsystem identifies one indexing channel family.
type Subsystem string

const (
	SubsystemNone         Subsystem = ""
	SubsystemGlossary     Subsystem = "glossaries"
	SubsystemNomenclature Subsystem = "nomencl"
	SubsystemIndex        Subsystem = "makeidx"
)

// priority is the fixed detection order; the first subsystem whose marker
// files exist is the only one processed.
var priority = []Subsystem{SubsystemGlossary, SubsystemNomenclature, SubsystemIndex}

// \@newglossary{name}{log-ext}{out-ext}{in-ext}
var newGlossary = regexp.MustCompile(`\\@newglossary\{([^{}]+)\}\{([^{}]*)\}\{([^{}]+)\}\{([^{}]+)\}`)

// Channel is one instance of a subsystem with its paired artifacts.
type Channel struct {
	Subsystem Subsystem
	// Name is human readable ("glossary main", "index").
	Name string
	// Instance is the glossary name; empty for other subsystems.
	Instance     string
	InputSuffix  string
	OutputSuffix string
	LogSuffix    string
}

// RunSpec describes one satellite tool invocation.
type RunSpec struct {
	Executable string
	Args       []string
	Channel    Channel
	Input      string
	Output     string
}

func (r RunSpec) String() string {
	return strings.TrimSpace(r.Executable + " " + strings.Join(r.Args, " "))
}

// Tools names the executables the commands use.
type Tools struct {
	MakeIndex    string
	Xindy        string
	NomenclStyle string
}

// DefaultTools returns the stock executable names.
func DefaultTools() Tools {
	return Tools{MakeIndex: "makeindex", Xindy: "xindy", NomenclStyle: "nomencl.ist"}
}

func (t Tools) withDefaults() Tools {
	defaults := DefaultTools()
	if t.MakeIndex == "" {
		t.MakeIndex = defaults.MakeIndex
	}
	if t.Xindy == "" {
		t.Xindy = defaults.Xindy
	}
	if t.NomenclStyle == "" {
		t.NomenclStyle = defaults.NomenclStyle
	}
	return t
}

// Request carries the resolver inputs.
type Request struct {
	Layout artifact.Layout
	// Prior holds index input contents captured before the first pass.
	Prior artifact.Fingerprints
	// Log is the most recent processor log.
	Log   string
	Tools Tools
}

// Resolution lists the active channels and the commands to run in order.
type Resolution struct {
	Subsystem Subsystem
	Channels  []Channel
	Commands  []RunSpec
	Status    string
}

// ExtraPasses is 1 when any satellite command is scheduled.
func (r Resolution) ExtraPasses() int {
	if len(r.Commands) > 0 {
		return 1
	}
	return 0
}

// Detect returns the highest-priority subsystem whose marker files exist.
func Detect(layout artifact.Layout) Subsystem {
	for _, sub := range priority {
		for _, ref := range markers(sub) {
			if artifact.FileExists(ref.Path(layout)) {
				return sub
			}
		}
	}
	return SubsystemNone
}

func markers(sub Subsystem) []artifact.ArtifactRef {
	switch sub {
	case SubsystemGlossary:
		return []artifact.ArtifactRef{artifact.IST, artifact.XDY}
	case SubsystemNomenclature:
		return []artifact.ArtifactRef{artifact.NLO}
	case SubsystemIndex:
		return []artifact.ArtifactRef{artifact.IDX}
	default:
		return nil
	}
}

// Channels lists the channel instances of sub. Glossary instances come from
// registration directives in the root auxiliary file.
func Channels(layout artifact.Layout, sub Subsystem) []Channel {
	switch sub {
	case SubsystemGlossary:
		content, ok := artifact.ReadFile(artifact.Aux.Path(layout))
		if !ok {
			return nil
		}
		var out []Channel
		seen := map[string]bool{}
		for _, match := range newGlossary.FindAllStringSubmatch(content, -1) {
			name := strings.TrimSpace(match[1])
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, Channel{
				Subsystem:    SubsystemGlossary,
				Name:         "glossary " + name,
				Instance:     name,
				LogSuffix:    "." + strings.TrimSpace(match[2]),
				OutputSuffix: "." + strings.TrimSpace(match[3]),
				InputSuffix:  "." + strings.TrimSpace(match[4]),
			})
		}
		return out
	case SubsystemNomenclature:
		return []Channel{{
			Subsystem:    SubsystemNomenclature,
			Name:         "nomenclature",
			InputSuffix:  artifact.NLO.Suffix,
			OutputSuffix: artifact.NLS.Suffix,
			LogSuffix:    ".nlg",
		}}
	case SubsystemIndex:
		return []Channel{{
			Subsystem:    SubsystemIndex,
			Name:         "index",
			InputSuffix:  artifact.IDX.Suffix,
			OutputSuffix: artifact.IND.Suffix,
			LogSuffix:    artifact.ILG.Suffix,
		}}
	default:
		return nil
	}
}

// InputPaths lists every index input that could be consulted after the first
// pass, across all subsystems. The scheduler fingerprints these up front.
func InputPaths(layout artifact.Layout) []string {
	var paths []string
	for _, sub := range priority {
		for _, ch := range Channels(layout, sub) {
			paths = append(paths, layout.Path(ch.InputSuffix))
		}
	}
	return paths
}

// Resolve picks the active subsystem and schedules a command for every stale
// channel instance.
func Resolve(req Request) Resolution {
	tools := req.Tools.withDefaults()
	sub := Detect(req.Layout)
	if sub == SubsystemNone {
		return Resolution{Status: "no index"}
	}
	channels := Channels(req.Layout, sub)
	res := Resolution{Subsystem: sub, Channels: channels}
	if len(channels) == 0 {
		res.Status = fmt.Sprintf("%s: no instances registered", sub)
		return res
	}
	var stale []string
	for _, ch := range channels {
		input := req.Layout.Path(ch.InputSuffix)
		output := req.Layout.Path(ch.OutputSuffix)
		if !IsStale(input, output, req.Prior, req.Log) {
			continue
		}
		res.Commands = append(res.Commands, command(req.Layout, ch, tools))
		stale = append(stale, ch.Name)
	}
	if len(stale) == 0 {
		res.Status = fmt.Sprintf("%s: up to date", sub)
	} else {
		res.Status = fmt.Sprintf("%s: rebuilding %s", sub, strings.Join(stale, ", "))
	}
	return res
}

// IsStale reports whether a channel's tool must run. It is stale when the log
// says either file was missing, when either file is absent, or when the input
// differs from its prior capture (no capture counts as different).
func IsStale(inputPath, outputPath string, prior artifact.Fingerprints, log string) bool {
	if logReportsMissing(log, inputPath) || logReportsMissing(log, outputPath) {
		return true
	}
	if !artifact.FileExists(outputPath) {
		return true
	}
	current, ok := artifact.ReadFile(inputPath)
	if !ok {
		return true
	}
	return !prior.Matches(inputPath, current)
}

func logReportsMissing(log, path string) bool {
	if log == "" || path == "" {
		return false
	}
	return strings.Contains(log, "No file "+filepath.Base(path)+".")
}

func command(layout artifact.Layout, ch Channel, tools Tools) RunSpec {
	input := layout.Name(ch.InputSuffix)
	output := layout.Name(ch.OutputSuffix)
	transcript := layout.Name(ch.LogSuffix)
	run := RunSpec{
		Channel: ch,
		Input:   layout.Path(ch.InputSuffix),
		Output:  layout.Path(ch.OutputSuffix),
	}
	switch ch.Subsystem {
	case SubsystemGlossary:
		if artifact.FileExists(artifact.IST.Path(layout)) {
			run.Executable = tools.MakeIndex
			run.Args = []string{"-s", layout.Name(artifact.IST.Suffix), "-t", transcript, "-o", output, input}
		} else {
			run.Executable = tools.Xindy
			run.Args = []string{"-L", "english", "-I", "xindy", "-M", layout.Project, "-t", transcript, "-o", output, input}
		}
	case SubsystemNomenclature:
		run.Executable = tools.MakeIndex
		run.Args = []string{input, "-s", tools.NomenclStyle, "-o", output, "-t", transcript}
	default:
		run.Executable = tools.MakeIndex
		run.Args = []string{"-o", output, "-t", transcript, input}
	}
	return run
}
