package ui

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/manifoldco/promptui"
)

// ErrCancelled is returned when the user aborts a prompt
var ErrCancelled = errors.New("operation cancelled by user")

// ConfirmPrompt asks a yes/no confirmation question
func ConfirmPrompt(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	result, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			// promptui reports a plain "n" as ErrAbort
			return false, nil
		}
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrCancelled
		}
		return false, err
	}

	return strings.EqualFold(result, "y"), nil
}

// SelectOption is one entry of a detailed selection list
type SelectOption struct {
	Label  string
	Detail string
	Value  string
}

// SelectPromptDetailed presents options with details. Typing filters the
// list with fuzzy matching on the label.
func SelectPromptDetailed(label string, options []SelectOption) (int, SelectOption, error) {
	if len(options) == 0 {
		return -1, SelectOption{}, errors.New("nothing to select")
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}?",
		Active:   "▸ {{ .Label | cyan }} ({{ .Detail | faint }})",
		Inactive: "  {{ .Label | faint }} ({{ .Detail | faint }})",
		Selected: "▸ {{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     label,
		Items:     options,
		Templates: templates,
		Size:      min(10, len(options)),
		Searcher: func(input string, index int) bool {
			if index < 0 || index >= len(options) {
				return false
			}
			return FuzzyMatch(input, options[index].Label)
		},
	}

	index, _, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
			return -1, SelectOption{}, fmt.Errorf("selection: %w", ErrCancelled)
		}
		return -1, SelectOption{}, err
	}

	return index, options[index], nil
}

// FuzzyMatch reports whether input fuzzily matches item, ignoring case
// and diacritics. Empty input matches everything.
func FuzzyMatch(input, item string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return true
	}
	return fuzzy.MatchNormalizedFold(input, item)
}

// FuzzyRank returns the items matching input, best match first
func FuzzyRank(input string, items []string) []string {
	input = strings.TrimSpace(input)
	if input == "" {
		out := make([]string, len(items))
		copy(out, items)
		return out
	}

	ranks := fuzzy.RankFindNormalizedFold(input, items)
	sort.Stable(ranks)

	out := make([]string, len(ranks))
	for i, r := range ranks {
		out[i] = r.Target
	}
	return out
}
