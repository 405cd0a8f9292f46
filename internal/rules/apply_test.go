package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyBasicOperations(t *testing.T) {
	tests := []struct {
		name string
		rule string
		word string
		want string
	}{
		{"identity", ":", "admin", "admin"},
		{"lowercase", "l", "PaSsWoRd", "password"},
		{"uppercase", "u", "password", "PASSWORD"},
		{"capitalize", "c", "password", "Password"},
		{"capitalize lowers rest", "c", "pASSWORD", "Password"},
		{"invert capitalize", "C", "Password", "pASSWORD"},
		{"toggle case", "t", "PaSs", "pAsS"},
		{"reverse", "r", "abc", "cba"},
		{"duplicate", "d", "ab", "abab"},
		{"duplicate n times", "p2", "ab", "ababab"},
		{"reflect", "f", "ab", "abba"},
		{"rotate left", "{", "abcd", "bcda"},
		{"rotate right", "}", "abcd", "dabc"},
		{"substitute all", "ss$", "password", "pa$$word"},
		{"substitute first", "za4", "banana", "b4nana"},
		{"substitute last", "Za4", "banana", "banan4"},
		{"purge", "@a", "banana", "bnn"},
		{"prepend char", "^!", "pass", "!pass"},
		{"prepend text", "^pre", "fix", "prefix"},
		{"append text", "$123", "pass", "pass123"},
		{"truncate", "<5", "password", "passw"},
		{"truncate longer than word", "<8", "pass", "pass"},
		{"skip first n", ">2", "password", "ssword"},
		{"skip past end", ">9", "password", ""},
		{"truncate at", "'3", "password", "pas"},
		{"delete at", "(0", "word", "ord"},
		{"keep only at", ")1", "word", "o"},
		{"insert", "i0!", "word", "!word"},
		{"insert middle", "i2-", "word", "wo-rd"},
		{"overwrite", "o0#", "word", "#ord"},
		{"delete from right", "D2", "password", "passwo"},
		{"extract", "x23", "password", "ssw"},
		{"rotate left by n", "L2", "abcdef", "cdefab"},
		{"chained case and append", "c$1", "admin", "Admin1"},
		{"chained with spaces", "u $! ^#", "ab", "#AB!"},
		{"empty word", "c", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := ParseRule(tt.rule)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rule.Apply(tt.word))
		})
	}
}

func TestApplyIsDeterministic(t *testing.T) {
	rule := MustParse("c ss$ $2024")
	first := rule.Apply("passwords")
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, rule.Apply("passwords"))
	}
}

func TestReverseIsInvolutive(t *testing.T) {
	rule := MustParse("r")
	for _, word := range []string{"", "a", "ab", "password", "héllo wörld", "12345"} {
		assert.Equal(t, word, rule.Apply(rule.Apply(word)), "word %q", word)
	}
}

func TestApplyGuards(t *testing.T) {
	tests := []struct {
		name string
		rule string
		word string
		want string
	}{
		{"length guard passes", "?<5 u", "abc", "ABC"},
		{"length guard fails skips step", "?<5 u", "abcdef", "abcdef"},
		{"length greater guard", "?>3 $!", "pass", "pass!"},
		{"length equal guard", "?=4 u", "pass", "PASS"},
		{"digit guard passes", "?d $!", "pass1", "pass1!"},
		{"digit guard fails", "?d $!", "pass", "pass"},
		{"first alpha guard passes", "?a c", "admin", "Admin"},
		{"first alpha guard fails", "?a c", "1admin", "1admin"},
		{"contains guard passes", "?pass u", "password", "PASSWORD"},
		{"contains guard fails", "?pxyz u", "password", "password"},
		{"guard skips only its step", "?<3 u $9", "admin", "admin9"},
		{"guard evaluated against current word", "d ?>3 $!", "ab", "abab!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := ParseRule(tt.rule)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rule.Apply(tt.word))
		})
	}
}

func TestApplyGuardModeDrop(t *testing.T) {
	rule := MustParse("?<5 u")

	out, ok := rule.ApplyMode("abc", GuardModeDrop)
	require.True(t, ok)
	assert.Equal(t, "ABC", out)

	_, ok = rule.ApplyMode("abcdef", GuardModeDrop)
	assert.False(t, ok, "failing guard should discard the candidate in drop mode")
}
