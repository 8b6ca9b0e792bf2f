package rag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyGreetings(t *testing.T) {
	filter := NewVietnameseFilter()

	reply, matched := filter.Classify("Chào bạn")
	require.True(t, matched)
	require.Equal(t, greetingReply["chao"], reply)

	reply, matched = filter.Classify("cam on nhe")
	require.True(t, matched)
	require.Equal(t, greetingReply["cam_on"], reply)

	_, matched = filter.Classify("Quy định về thủ tục hành chính là gì?")
	require.False(t, matched)
}

func TestClassifyMeaninglessInput(t *testing.T) {
	filter := NewVietnameseFilter()

	reply, matched := filter.Classify("asdasdasd")
	require.True(t, matched)
	require.Equal(t, meaninglessReply, reply)

	_, matched = filter.Classify("")
	require.False(t, matched)
}

func TestIsMeaninglessDetectsKeyboardWalks(t *testing.T) {
	cases := []string{
		"qwerty",
		"asdfgh",
		"zxcvbn",
		"qazwsx",
		"qwertyuiop",
		"asdfghjkl",
		"zxcvbnm",
		"abcdefgh",
	}
	for _, c := range cases {
		require.True(t, isMeaningless(c), "expected %q to be flagged as a keyboard walk", c)
	}
}

func TestIsMeaninglessDetectsAllDigits(t *testing.T) {
	require.True(t, isMeaningless("123456789"))
	require.True(t, isMeaningless("12-34-56"))
}

func TestIsMeaninglessDetectsRepeatedCharacters(t *testing.T) {
	require.True(t, isMeaningless("aaaaaa"))
	require.True(t, isMeaningless("ababab"))
}

func TestIsMeaninglessAllowsRealQuestions(t *testing.T) {
	require.False(t, isMeaningless("Quy định về thủ tục hành chính là gì?"))
	require.False(t, isMeaningless("Tài liệu này nói về điều gì?"))
	require.False(t, isMeaningless("What is the deadline for filing this form?"))
}

func TestIsMeaninglessAllowsShortInput(t *testing.T) {
	require.False(t, isMeaningless("ok"))
	require.False(t, isMeaningless(""))
}
