// Package promptcontract owns the single fixed system prompt that enforces
// the citation contract: every substantive claim followed by one
// "[Documento: ... | Timestamp: ...]" marker and a literal quoted excerpt,
// no fabrication, no metadata-only references, and coverage of every
// context entry handed to the model. The post-processor validates the
// contract this package asks the model to honor; it does not re-implement it.
package promptcontract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const templateFile = "system_prompt.txt"

const (
	contextSlot = "{context}"
	inputSlot   = "{input}"
)

// Template reads the fixed system prompt from disk and interpolates the
// context and query into its {context}/{input} slots. It caches the raw
// template in memory and supports hot-reload without restarting the process.
type Template struct {
	promptsDir string

	mu   sync.RWMutex
	text string
}

// New loads the system prompt from dir/system_prompt.txt. The file is
// required: a missing prompt means the generation step cannot honor the
// citation contract, so startup fails rather than falling back to a
// built-in default.
func New(promptsDir string) (*Template, error) {
	t := &Template{promptsDir: promptsDir}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Template) load() error {
	path := filepath.Join(t.promptsDir, templateFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("FATAL: %s missing — the generator cannot enforce the citation contract without it: %w", path, err)
	}
	text := string(raw)
	if !strings.Contains(text, contextSlot) || !strings.Contains(text, inputSlot) {
		return fmt.Errorf("FATAL: %s is missing %s or %s interpolation slots", path, contextSlot, inputSlot)
	}

	t.mu.Lock()
	t.text = text
	t.mu.Unlock()
	return nil
}

// Build substitutes context and input into the cached template, producing
// the full prompt handed to the generative model.
func (t *Template) Build(context, input string) string {
	t.mu.RLock()
	text := t.text
	t.mu.RUnlock()

	text = strings.ReplaceAll(text, contextSlot, context)
	text = strings.ReplaceAll(text, inputSlot, input)
	return text
}

// HotReload re-reads the template file from disk without restarting.
func (t *Template) HotReload() error {
	return t.load()
}

// Raw returns the cached, un-interpolated template text (for testing and
// inspection).
func (t *Template) Raw() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.text
}
