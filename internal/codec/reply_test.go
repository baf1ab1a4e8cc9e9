package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReplyContextSenderOnly(t *testing.T) {
	msg, err := Decode(crlf(plainMessage))
	require.NoError(t, err)

	rc := BuildReplyContext(msg, "b@x.com", false, true)

	assert.Equal(t, []string{"a@x.com"}, rc.To)
	assert.Empty(t, rc.Cc)
	assert.Equal(t, "Re: Quarterly numbers", rc.Subject)
	assert.Equal(t, "<m1@x.com>", rc.InReplyTo)
	assert.Equal(t, []string{"<r0@x.com>", "<m1@x.com>"}, rc.References)
	assert.True(t, rc.QuoteAvailable)
	assert.Equal(t, "> Hello Bob,\n> the numbers are in.", rc.QuotedText)
}

func TestBuildReplyContextToAll(t *testing.T) {
	raw := crlf(`From: a@x.com
To: B@x.com, c@x.com
Cc: C@X.com, d@x.com, a@x.com
Subject: RE: plans
Message-ID: <m2@x.com>
References: <r1@x.com> <m2@x.com>
Content-Type: text/html

<p>hi</p>
`)
	msg, err := Decode(raw)
	require.NoError(t, err)

	rc := BuildReplyContext(msg, "b@x.com", true, true)

	assert.Equal(t, []string{"a@x.com"}, rc.To)
	assert.Equal(t, []string{"c@x.com", "d@x.com"}, rc.Cc)
	assert.Equal(t, "RE: plans", rc.Subject)
	assert.Equal(t, []string{"<r1@x.com>", "<m2@x.com>"}, rc.References)
	assert.False(t, rc.QuoteAvailable)
	assert.Empty(t, rc.QuotedText)
}

func TestReplySubject(t *testing.T) {
	tests := map[string]string{
		"hello":      "Re: hello",
		"Re: hello":  "Re: hello",
		"re: hello":  "re: hello",
		"RE:hello":   "RE:hello",
		"  Report  ": "Re: Report",
		"":           "Re: ",
	}
	for in, want := range tests {
		assert.Equal(t, want, ReplySubject(in), in)
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "> one\n>\n> two", Quote("one\r\n\r\ntwo\r\n"))
}
