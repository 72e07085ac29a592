package evalcomment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhuddel/ghciwatch/internal/evalcomment"
)

func TestExtract_SingleLine(t *testing.T) {
	cmds := evalcomment.Extract([]byte("module Foo where\n-- $> 1 + 1\n"))
	require.Len(t, cmds, 1)
	assert.Equal(t, "1 + 1", cmds[0].Expr)
	assert.Equal(t, 2, cmds[0].Line)
}

func TestExtract_Block(t *testing.T) {
	src := "module Foo where\n{- $>\nlet x = 21\nx * 2\n<$ -}\n"
	cmds := evalcomment.Extract([]byte(src))
	require.Len(t, cmds, 1)
	assert.Equal(t, "let x = 21\nx * 2", cmds[0].Expr)
	assert.Equal(t, 2, cmds[0].Line)
}

func TestExtract_MultipleMarkers(t *testing.T) {
	src := "-- $> a\nfoo = 1\n-- $> b\n"
	cmds := evalcomment.Extract([]byte(src))
	require.Len(t, cmds, 2)
	assert.Equal(t, "a", cmds[0].Expr)
	assert.Equal(t, "b", cmds[1].Expr)
}

func TestExtract_NonMatchingLinesYieldNoCommands(t *testing.T) {
	cmds := evalcomment.Extract([]byte("-- just a comment\nfoo = 1\n"))
	assert.Empty(t, cmds)
}

func TestExtract_UnterminatedBlockYieldsNoCommand(t *testing.T) {
	src := "{- $>\nlet x = 1\n"
	cmds := evalcomment.Extract([]byte(src))
	assert.Empty(t, cmds)
}
