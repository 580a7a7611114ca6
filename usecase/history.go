package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/satriahrh/schedula/domain/entities"
)

// ScheduleQueryPrefix marks requests issued by the schedule view. Exchanges whose
// message starts with it are machine traffic and never shown as conversation.
const ScheduleQueryPrefix = "Get events for"

// FlattenHistory turns stored exchanges into conversation messages: each exchange
// becomes a user message followed by an assistant message carrying the same
// timestamp. Schedule queries are left out.
func FlattenHistory(exchanges []entities.Exchange) []entities.Message {
	kept := make([]entities.Exchange, 0, len(exchanges))
	for _, ex := range exchanges {
		if strings.HasPrefix(ex.Message, ScheduleQueryPrefix) {
			continue
		}
		kept = append(kept, ex)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})

	messages := make([]entities.Message, 0, len(kept)*2)
	for i, ex := range kept {
		messages = append(messages,
			entities.Message{
				ID:        fmt.Sprintf("%d-user", i),
				Content:   ex.Message,
				Sender:    entities.SenderUser,
				Timestamp: ex.Timestamp,
			},
			entities.Message{
				ID:        fmt.Sprintf("%d-assistant", i),
				Content:   ex.Response,
				Sender:    entities.SenderAssistant,
				Timestamp: ex.Timestamp,
			},
		)
	}
	return messages
}
