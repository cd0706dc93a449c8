package notification

import (
	"testing"

	"github.com/sagenius/agency-crm/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFill(t *testing.T) {
	out := Fill("Hi {student_name}, {agency_name} update: {status} ({country}) {unknown}", TemplateVars{
		StudentName: "Ram Karki",
		AgencyName:  "StudyAbroad Genius",
		Country:     "Australia",
		Status:      "Visa Granted",
	})

	assert.Equal(t, "Hi Ram Karki, StudyAbroad Genius update: Visa Granted (Australia) {unknown}", out)
}

func TestWhatsAppLink(t *testing.T) {
	link := WhatsAppLink("+977 980-1234567", "Hi Ram & family")
	assert.Equal(t, "https://wa.me/9779801234567?text=Hi+Ram+%26+family", link)
}

func TestNewMessage_Validation(t *testing.T) {
	_, err := NewMessage(NewMessageParams{Channel: "sms", To: "x", Body: "b"})
	assert.ErrorIs(t, err, shared.ErrInvalidChannel)

	_, err = NewMessage(NewMessageParams{Channel: ChannelTypeEmail, Body: "b"})
	assert.ErrorIs(t, err, shared.ErrNoRecipient)

	_, err = NewMessage(NewMessageParams{Channel: ChannelTypeEmail, To: "a@b.c"})
	assert.True(t, shared.IsValidation(err))

	msg, err := NewMessage(NewMessageParams{Channel: ChannelTypeLog, Body: "reminder"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.NotNil(t, msg.Metadata)
}

func TestParseChannelType(t *testing.T) {
	ct, err := ParseChannelType(" WhatsApp ")
	require.NoError(t, err)
	assert.Equal(t, ChannelTypeWhatsApp, ct)
	assert.True(t, ct.NeedsRecipient())
	assert.False(t, ChannelTypeLog.NeedsRecipient())

	_, err = ParseChannelType("telegram")
	assert.ErrorIs(t, err, shared.ErrInvalidChannel)
}

func TestNewMessage_LogChannelNeedsNoRecipient(t *testing.T) {
	msg, err := NewMessage(NewMessageParams{AgencyID: "demo", Channel: ChannelTypeLog, Body: "3 tasks today"})
	require.NoError(t, err)
	assert.Empty(t, msg.To)

	_, err = NewMessage(NewMessageParams{AgencyID: "demo", Channel: ChannelTypeEmail, Body: "hi"})
	assert.ErrorIs(t, err, shared.ErrNoRecipient)
}

func TestUndelivered_DefaultsError(t *testing.T) {
	res := Undelivered(ChannelTypeEmail, nil, true)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Error, shared.ErrNotificationFailed)
	assert.True(t, res.Retryable)

	ok := Delivered(ChannelTypeLog, "m1")
	assert.True(t, ok.Success)
	assert.Equal(t, "m1", ok.MessageID)
}
