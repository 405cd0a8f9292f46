package candidates

import (
	"fmt"
	"os"

	"github.com/eshanized/ERPCT/internal/rules"
)

// FromFiles builds a credential stream from word list files. When a rules
// file is given the password list is expanded through the mutation
// engine; the expanded sequence stays index-addressable so the stream can
// still seek.
func FromFiles(usernameFile, passwordFile, rulesFile, ordering string) (*Stream, error) {
	usernames, err := LoadWords(usernameFile)
	if err != nil {
		return nil, fmt.Errorf("usernames: %w", err)
	}
	passwords, err := LoadWords(passwordFile)
	if err != nil {
		return nil, fmt.Errorf("passwords: %w", err)
	}

	var passwordSource Source = SliceSource(passwords)
	if rulesFile != "" {
		f, err := os.Open(rulesFile)
		if err != nil {
			return nil, fmt.Errorf("rules: %w", err)
		}
		parsed, err := rules.ParseRules(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("rules: %w", err)
		}
		passwordSource = rules.NewGenerator(passwords, parsed)
	}

	var order Ordering
	switch ordering {
	case "", "username_first":
		order = UsernameFirst
	case "password_first":
		order = PasswordFirst
	default:
		return nil, fmt.Errorf("unknown ordering %q", ordering)
	}

	return New(SliceSource(usernames), passwordSource, order), nil
}
