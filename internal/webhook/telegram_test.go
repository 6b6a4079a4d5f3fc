package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postelma/inbox-platform/internal/model"
)

func TestParseTelegramTextMessage(t *testing.T) {
	body := []byte(`{
		"update_id": 10000,
		"message": {
			"message_id": 42,
			"date": 1714000000,
			"chat": {"id": 555, "type": "private"},
			"from": {"id": 555, "is_bot": false, "first_name": "Alice", "last_name": "Smith", "username": "alice"},
			"text": "hello there"
		}
	}`)

	in, err := ParseTelegram(body, "user-1")
	require.NoError(t, err)
	require.NotNil(t, in)

	assert.Equal(t, model.PlatformTelegram, in.Platform)
	assert.Equal(t, "telegram_555", in.PlatformConversationID)
	assert.Equal(t, "42", in.PlatformMessageID)
	assert.Equal(t, model.TypeText, in.Type)
	assert.Equal(t, "hello there", in.TextContent)
	assert.Equal(t, "555", in.ParticipantID)
	assert.Equal(t, "alice", in.ParticipantUsername)
	assert.Equal(t, "Alice Smith", in.ParticipantName)
	assert.Equal(t, int64(1714000000), in.SentAt.Unix())
}

func TestParseTelegramPhotoPicksLargest(t *testing.T) {
	body := []byte(`{
		"update_id": 10001,
		"message": {
			"message_id": 43,
			"date": 1714000001,
			"chat": {"id": 555, "type": "private"},
			"caption": "look at this",
			"photo": [
				{"file_id": "small", "width": 90, "height": 90},
				{"file_id": "big", "width": 800, "height": 600},
				{"file_id": "medium", "width": 320, "height": 240}
			]
		}
	}`)

	in, err := ParseTelegram(body, "user-1")
	require.NoError(t, err)
	require.NotNil(t, in)

	assert.Equal(t, model.TypeImage, in.Type)
	assert.Equal(t, "tg://file/big", in.MediaURL)
	assert.Equal(t, "look at this", in.TextContent)
}

func TestParseTelegramNonMessageUpdate(t *testing.T) {
	// Edited messages and callback queries carry no message field.
	in, err := ParseTelegram([]byte(`{"update_id": 10002, "edited_message": {"message_id": 1, "chat": {"id": 1}}}`), "user-1")
	require.NoError(t, err)
	assert.Nil(t, in)
}

func TestParseTelegramInvalidJSON(t *testing.T) {
	_, err := ParseTelegram([]byte(`{not json`), "user-1")
	assert.Error(t, err)
}
