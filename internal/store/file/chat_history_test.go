package file

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/providers"
)

func Test_ChatHistory_AppendAccumulatesInOrder(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()

	history := NewChatHistory(db)
	channelID := uuid.New()

	if err := history.AppendMessages(ctx, channelID, []providers.Message{
		{Role: "user", Content: "hi"},
	}); err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}
	if err := history.AppendMessages(ctx, channelID, []providers.Message{
		{Role: "assistant", Content: "hello"},
	}); err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}

	got, err := history.History(ctx, channelID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 || got[0].Content != "hi" || got[1].Content != "hello" {
		t.Fatalf("unexpected history: %+v", got)
	}
}

func Test_ChatHistory_UnknownChannelReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()

	got, err := NewChatHistory(db).History(ctx, uuid.New())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %+v", got)
	}
}
