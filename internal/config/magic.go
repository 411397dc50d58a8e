package config

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// magicScanLines bounds how far into the source magic comments are honoured.
const magicScanLines = 20

var magicPattern = regexp.MustCompile(`^%\s*!\s*TEX\s+([A-Za-z_-]+)\s*=\s*(.+?)\s*$`)

// Magic holds settings declared through "% !TEX key = value" comments at the
// top of a source file.
type Magic struct {
	Program   string
	Root      string
	OutputDir string
	AuxDir    string
}

// ExtractMagic reads the leading comment block of path. Scanning stops at the
// first non-comment, non-blank line.
func ExtractMagic(path string) (Magic, error) {
	file, err := os.Open(path)
	if err != nil {
		return Magic{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	var magic Magic
	scanner := bufio.NewScanner(file)
	for line := 0; line < magicScanLines && scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if !strings.HasPrefix(text, "%") {
			break
		}
		match := magicPattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value := match[2]
		switch strings.ToLower(match[1]) {
		case "program", "ts-program":
			magic.Program = strings.ToLower(value)
		case "root":
			magic.Root = value
		case "output_directory", "output-directory":
			magic.OutputDir = value
		case "aux_directory", "aux-directory":
			magic.AuxDir = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Magic{}, fmt.Errorf("config: scan %s: %w", path, err)
	}
	return magic, nil
}

// Overrides selectively replaces project settings. Nil fields are left alone.
type Overrides struct {
	Program          *string
	OutputDir        *string
	AuxDir           *string
	MaxPasses        *int
	FollowRerunHints *bool
}

// ApplyMagic layers magic-comment settings over the loaded config.
func (c *Config) ApplyMagic(m Magic) {
	if m.Program != "" {
		c.Project.Program = m.Program
	}
	if m.OutputDir != "" {
		c.Project.OutputDir = resolvePath(c.ProjectDir, m.OutputDir)
	}
	if m.AuxDir != "" {
		c.Project.AuxDir = resolvePath(c.ProjectDir, m.AuxDir)
	}
}

// ApplyOverrides layers CLI settings over the loaded config.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Program != nil && strings.TrimSpace(*o.Program) != "" {
		c.Project.Program = *o.Program
	}
	if o.OutputDir != nil {
		c.Project.OutputDir = resolvePath(c.ProjectDir, *o.OutputDir)
	}
	if o.AuxDir != nil {
		c.Project.AuxDir = resolvePath(c.ProjectDir, *o.AuxDir)
	}
	if o.MaxPasses != nil && *o.MaxPasses > 0 {
		c.Project.MaxPasses = *o.MaxPasses
	}
	if o.FollowRerunHints != nil {
		value := *o.FollowRerunHints
		c.Project.FollowRerunHints = &value
	}
}
