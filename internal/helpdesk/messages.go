package helpdesk

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/desksync/backend/internal/models"
)

const (
	// SystemUserID is the reserved acting-user id the remote service uses
	// for automated messages.
	SystemUserID = "system00"

	SenderSystem = "system"
	SenderAgent  = "agent"
	SenderClient = "client"

	unknownAgentName = "unknown agent"
)

var messageTimestampFields = []string{
	"datecreated", "datefinished", "message_datecreated", "datetime_extracted",
}

// MessageFetcher flattens each ticket's message groups into warehouse rows.
// The agent cache must be populated before Fetch is called.
type MessageFetcher struct {
	Client *Client
	Agents *AgentCache
	Loc    *time.Location

	userIDs map[string]struct{}
}

func NewMessageFetcher(client *Client, agents *AgentCache, loc *time.Location) *MessageFetcher {
	return &MessageFetcher{
		Client:  client,
		Agents:  agents,
		Loc:     loc,
		userIDs: make(map[string]struct{}),
	}
}

// Fetch paginates message groups for every ticket and emits one row per leaf
// message, or one row with null leaf fields for a group with no leaves. A
// transport failure on one ticket keeps that ticket's partial pages and moves
// on to the next.
func (f *MessageFetcher) Fetch(ctx context.Context, tickets []models.TicketRef, perPage, maxPages int) ([]models.Record, error) {
	extracted := time.Now().UTC()

	var rows []models.Record
	for _, ticket := range tickets {
		query := url.Values{}
		query.Set("_perPage", strconv.Itoa(perPage))

		groups := f.Client.FetchAllPages(ctx, fmt.Sprintf("/tickets/%s/messages", ticket.ID), query, "page", maxPages)
		for _, group := range groups {
			rows = append(rows, f.flattenGroup(ticket, group, extracted)...)
		}
	}
	if len(rows) == 0 {
		return nil, ErrEmptyResult
	}
	return rows, nil
}

// CollectedUserIDs returns every acting-user id seen during flattening,
// deduplicated, for the bulk user backfill.
func (f *MessageFetcher) CollectedUserIDs() []string {
	ids := make([]string, 0, len(f.userIDs))
	for id := range f.userIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *MessageFetcher) flattenGroup(ticket models.TicketRef, group models.Record, extracted time.Time) []models.Record {
	leaves, _ := group["messages"].([]any)
	if len(leaves) == 0 {
		row := f.baseRow(ticket, group, extracted)
		f.resolveParties(row, ticket, str(group["userid"]))
		localizeFields(row, f.Loc, messageTimestampFields...)
		return []models.Record{row}
	}

	rows := make([]models.Record, 0, len(leaves))
	for _, leaf := range leaves {
		msg, ok := leaf.(map[string]any)
		if !ok {
			continue
		}
		row := f.baseRow(ticket, group, extracted)
		row["message_id"] = msg["id"]
		row["userid"] = msg["userid"]
		row["message_datecreated"] = msg["datecreated"]
		row["message_format"] = msg["format"]
		row["visibility"] = msg["visibility"]
		row["message"] = msg["message"]
		if v, ok := msg["sort_order"]; ok {
			row["sort_order"] = sortOrder(v)
		}
		f.resolveParties(row, ticket, str(msg["userid"]))
		localizeFields(row, f.Loc, messageTimestampFields...)
		rows = append(rows, row)
	}
	return rows
}

// baseRow carries the group-level fields every leaf inherits.
func (f *MessageFetcher) baseRow(ticket models.TicketRef, group models.Record, extracted time.Time) models.Record {
	return models.Record{
		"ticket_id":           ticket.ID,
		"owner_name":          ticket.OwnerName,
		"agentid":             ticket.AgentID,
		"message_group_id":    group["id"],
		"parent_id":           group["parent_id"],
		"group_userid":        group["userid"],
		"group_type":          group["type"],
		"status":              group["status"],
		"datecreated":         group["datecreated"],
		"datefinished":        group["datefinished"],
		"sort_order":          sortOrder(group["sort_order"]),
		"message_id":          nil,
		"userid":              nil,
		"message_datecreated": nil,
		"message_format":      nil,
		"visibility":          nil,
		"message":             nil,
		"datetime_extracted":  extracted,
	}
}

// resolveParties applies the sender/receiver rule: the reserved system id
// speaks as "system" to the ticket owner; a cached agent id speaks as
// "agent" to the owner; anything else is the owner speaking as "client" to
// the ticket's assigned agent.
func (f *MessageFetcher) resolveParties(row models.Record, ticket models.TicketRef, actingUserID string) {
	if actingUserID != "" {
		f.userIDs[actingUserID] = struct{}{}
	}

	switch {
	case actingUserID == SystemUserID:
		row["sender_name"] = SenderSystem
		row["sender_type"] = SenderSystem
		row["receiver_name"] = ticket.OwnerName
		row["receiver_type"] = SenderClient
	default:
		if agent, ok := f.Agents.Lookup(actingUserID); ok {
			row["sender_name"] = agent.Name
			row["sender_type"] = SenderAgent
			row["receiver_name"] = ticket.OwnerName
			row["receiver_type"] = SenderClient
			return
		}
		row["sender_name"] = ticket.OwnerName
		row["sender_type"] = SenderClient
		receiver := unknownAgentName
		if agent, ok := f.Agents.Lookup(ticket.AgentID); ok {
			receiver = agent.Name
		}
		row["receiver_name"] = receiver
		row["receiver_type"] = SenderAgent
	}
}

func sortOrder(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}
