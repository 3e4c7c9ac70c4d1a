// Package prompt assembles versioned, capability-scoped prompt templates
// behind a fixed security policy preamble, grounded on the teacher's
// YAML-driven config loading (gopkg.in/yaml.v3) and the FAQ domain's
// single static-prompt-with-default-fallback field.
package prompt

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "github.com/saintwyss/rag-corp-sub003/pkg/errors"
)

type frontmatter struct {
	Required []string `yaml:"required"`
	Optional []string `yaml:"optional"`
}

type template struct {
	meta frontmatter
	body string
}

// Loader loads and caches prompt templates from an fs.FS for the lifetime
// of the process. There is no hot reload: a changed file on disk is not
// observed until the process restarts.
type Loader struct {
	files fs.FS
	mu    sync.RWMutex
	cache map[string]template
}

// NewLoader constructs a Loader reading templates from files.
func NewLoader(files fs.FS) *Loader {
	return &Loader{files: files, cache: make(map[string]template)}
}

var versionPattern = regexp.MustCompile(`^v(\d+)$`)

// Format composes the fixed security policy for lang with the versioned
// template for capability, substituting kwargs into `{name}` placeholders.
// Every name declared required in the template's frontmatter must be
// present in kwargs.
func (l *Loader) Format(ctx context.Context, capability, version, lang string, kwargs map[string]string) (string, error) {
	if !versionPattern.MatchString(version) {
		return "", apperrors.Wrap(apperrors.CodeValidation, fmt.Sprintf("invalid prompt version %q", version), nil)
	}
	policy, err := l.load(fmt.Sprintf("policy/secure_contract_%s.md", lang))
	if err != nil {
		policy, err = l.load("policy/secure_contract_en.md")
		if err != nil {
			return "", err
		}
	}
	tmpl, err := l.loadCapability(capability, version)
	if err != nil {
		return "", err
	}
	for _, name := range tmpl.meta.Required {
		if _, ok := kwargs[name]; !ok {
			return "", apperrors.Wrap(apperrors.CodeValidation, fmt.Sprintf("missing required prompt argument %q", name), nil)
		}
		if !strings.Contains(tmpl.body, "{"+name+"}") {
			return "", apperrors.Wrap(apperrors.CodeValidation, fmt.Sprintf("template does not reference required argument %q", name), nil)
		}
	}
	body := substitute(tmpl.body, kwargs)
	return policy.body + "\n---\n" + body, nil
}

// loadCapability loads capability/<version>.md, falling back to v1 when the
// requested version file does not exist.
func (l *Loader) loadCapability(capability, version string) (template, error) {
	path := fmt.Sprintf("%s/%s.md", capability, version)
	tmpl, err := l.load(path)
	if err == nil {
		return tmpl, nil
	}
	if version == "v1" {
		return template{}, apperrors.Wrap(apperrors.CodeMissing, fmt.Sprintf("prompt template %q not found", path), err)
	}
	fallback := fmt.Sprintf("%s/v1.md", capability)
	tmpl, ferr := l.load(fallback)
	if ferr != nil {
		return template{}, apperrors.Wrap(apperrors.CodeMissing, fmt.Sprintf("prompt template %q not found", path), err)
	}
	return tmpl, nil
}

func (l *Loader) load(path string) (template, error) {
	l.mu.RLock()
	if t, ok := l.cache[path]; ok {
		l.mu.RUnlock()
		return t, nil
	}
	l.mu.RUnlock()

	raw, err := fs.ReadFile(l.files, path)
	if err != nil {
		return template{}, err
	}
	meta, body := splitFrontmatter(raw)
	var fm frontmatter
	if len(meta) > 0 {
		if err := yaml.Unmarshal(meta, &fm); err != nil {
			return template{}, apperrors.Wrap(apperrors.CodeValidation, fmt.Sprintf("invalid frontmatter in %q", path), err)
		}
	}
	t := template{meta: fm, body: strings.TrimSpace(string(body))}

	l.mu.Lock()
	l.cache[path] = t
	l.mu.Unlock()
	return t, nil
}

func splitFrontmatter(raw []byte) (meta, body []byte) {
	const delim = "---\n"
	if !bytes.HasPrefix(raw, []byte(delim)) {
		return nil, raw
	}
	rest := raw[len(delim):]
	idx := bytes.Index(rest, []byte(delim))
	if idx < 0 {
		return nil, raw
	}
	return rest[:idx], rest[idx+len(delim):]
}

func substitute(body string, kwargs map[string]string) string {
	out := body
	for k, v := range kwargs {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// VersionNumber extracts the numeric portion of a "vN" version string.
func VersionNumber(version string) (int, bool) {
	m := versionPattern.FindStringSubmatch(version)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
