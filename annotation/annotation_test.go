package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitExtractsProseAndTags(t *testing.T) {
	doc := "Fetches a widget by id.\n\n@flowWeaver nodeType\n@name FetchWidget\n@input id string\n"
	prose, tags := Split(doc)

	assert.Equal(t, "Fetches a widget by id.", prose)
	require.Len(t, tags, 3)
	assert.Equal(t, "flowWeaver", tags[0].Name)
	assert.Equal(t, "nodeType", tags[0].Body)
	assert.Equal(t, "name", tags[1].Name)
	assert.Equal(t, "FetchWidget", tags[1].Body)
	assert.Equal(t, "input", tags[2].Name)
	assert.Equal(t, "id string", tags[2].Body)
}

func TestSplitContinuesMultilineBody(t *testing.T) {
	doc := "@node n1 Fetch label:\"multi\n  word\"\n@name x"
	_, tags := Split(doc)
	require.Len(t, tags, 2)
	assert.Contains(t, tags[0].Body, "multi")
	assert.Contains(t, tags[0].Body, "word")
}

func TestTokenizeHandlesStringsAndArrowsAndBrackets(t *testing.T) {
	toks, err := Tokenize(`stepA -> stepB:route label:"a \"quoted\" bit" [x,y]`)
	require.NoError(t, err)

	var kinds []TokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Contains(t, kinds, TokenArrow)
	assert.Contains(t, kinds, TokenColon)
	assert.Contains(t, kinds, TokenLBracket)
	assert.Contains(t, kinds, TokenRBracket)
	assert.Contains(t, kinds, TokenComma)

	var foundQuoted bool
	for _, tok := range toks {
		if tok.Kind == TokenString {
			assert.Equal(t, `a "quoted" bit`, tok.Text)
			foundQuoted = true
		}
	}
	assert.True(t, foundQuoted)
}

func TestTokenizeUnterminatedStringErrors(t *testing.T) {
	_, err := Tokenize(`label:"unterminated`)
	assert.Error(t, err)
}
