package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Sentiment(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, "neutral", p.Sentiment("what is my balance"))
	assert.Equal(t, "negative", p.Sentiment("this is ridiculous"))
	assert.Equal(t, "very_negative", p.Sentiment("this is ridiculous, I'm calling my lawyer"))
}

func TestPolicy_IsEscalationRequest(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, p.IsEscalationRequest("let me talk to a real person"))
	assert.True(t, p.IsEscalationRequest("transfer me to a supervisor"))
	assert.False(t, p.IsEscalationRequest("what are your branch hours"))
}

func TestPolicy_StickyAgents(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, p.IsSticky("compliance"))
	assert.True(t, p.IsSticky("fraud_detection"))
	assert.False(t, p.IsSticky("sales"))
	assert.False(t, p.IsSticky("customer_service"))
}

func TestPolicy_TriggerPhraseSets(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, MatchesAny("please STOP CALLING me", p.CeasePhrases))
	assert.True(t, MatchesAny("I dispute this charge, it's not my debt", p.DisputePhrases))
	assert.True(t, MatchesAny("someone stole my card yesterday", p.CardBlockPhrases))
	assert.True(t, MatchesAny("there are unauthorized charges", p.ActiveFraudPhrases))
	assert.True(t, MatchesAny("I'm not interested, remove me from the list", p.OptOutPhrases))
	assert.False(t, MatchesAny("what is my balance", p.CeasePhrases))
}

func TestRenderDisclosure(t *testing.T) {
	p := DefaultPolicy()

	out := RenderDisclosure(p.MiniMiranda, "First National")
	assert.Contains(t, out, "attempt to collect a debt")
	assert.Contains(t, out, "First National")
	assert.NotContains(t, out, "{bank_name}")
}
