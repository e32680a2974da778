package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/supportsphere/escalation-engine/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Client{},
		&models.ClientUser{},
		&models.Ticket{},
		&models.Message{},
		&models.Escalation{},
		&models.Document{},
		&models.DocChunk{},
		&models.Faq{},
		&models.ThresholdRule{},
	))
	return db
}

func seedClient(t *testing.T, db *gorm.DB, phone string) *models.Client {
	t.Helper()
	client := &models.Client{
		OwnerID:     uuid.New(),
		PhoneNumber: phone,
	}
	require.NoError(t, db.Create(client).Error)
	return client
}

func TestClientRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("GetByPhone returns nil when absent", func(t *testing.T) {
		repo := NewClientRepo(newTestDB(t))
		client, err := repo.GetByPhone(ctx, "628000000000")
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("GetOrCreateByPhone registers on first contact", func(t *testing.T) {
		repo := NewClientRepo(newTestDB(t))
		ownerID := uuid.New()

		created, err := repo.GetOrCreateByPhone(ctx, ownerID, "628111111111")
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, ownerID, created.OwnerID)

		again, err := repo.GetOrCreateByPhone(ctx, ownerID, "628111111111")
		require.NoError(t, err)
		assert.Equal(t, created.ID, again.ID)
	})

	t.Run("AssignAgent keeps a single active assignment", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewClientRepo(db)
		client := seedClient(t, db, "628222222222")

		firstAgent := uuid.New()
		secondAgent := uuid.New()
		require.NoError(t, repo.AssignAgent(ctx, client.ID, firstAgent))
		require.NoError(t, repo.AssignAgent(ctx, client.ID, secondAgent))

		active, err := repo.GetActiveAgent(ctx, client.ID)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, secondAgent, active.UserID)

		var activeCount int64
		require.NoError(t, db.Model(&models.ClientUser{}).
			Where("client_id = ? AND is_active = ?", client.ID, true).
			Count(&activeCount).Error)
		assert.Equal(t, int64(1), activeCount)
	})
}

func TestTicketRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("GetByID returns nil when absent", func(t *testing.T) {
		repo := NewTicketRepo(newTestDB(t))
		ticket, err := repo.GetByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, ticket)
	})

	t.Run("GetOpenByClient returns nil without an open ticket", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewTicketRepo(db)
		client := seedClient(t, db, "628300000001")

		ticket, err := repo.GetOpenByClient(ctx, client.ID)
		require.NoError(t, err)
		assert.Nil(t, ticket)
	})

	t.Run("CreateWithFirstMessage links the message to the new ticket", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewTicketRepo(db)
		client := seedClient(t, db, "628300000002")

		ticket := &models.Ticket{
			OwnerID:  client.OwnerID,
			ClientID: client.ID,
			Status:   models.TicketStatusOpen,
		}
		msg := &models.Message{
			MessageUUID: "m1",
			Sender:      models.SenderClient,
			Content:     "hello",
		}
		require.NoError(t, repo.CreateWithFirstMessage(ctx, ticket, msg))
		assert.Equal(t, ticket.ID, msg.TicketID)

		open, err := repo.GetOpenByClient(ctx, client.ID)
		require.NoError(t, err)
		require.NotNil(t, open)
		assert.Equal(t, ticket.ID, open.ID)
	})

	t.Run("duplicate message UUID per ticket is rejected", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewTicketRepo(db)
		client := seedClient(t, db, "628300000003")

		ticket := &models.Ticket{OwnerID: client.OwnerID, ClientID: client.ID, Status: models.TicketStatusOpen}
		first := &models.Message{MessageUUID: "dup", Sender: models.SenderClient, Content: "a"}
		require.NoError(t, repo.CreateWithFirstMessage(ctx, ticket, first))

		second := &models.Message{TicketID: ticket.ID, MessageUUID: "dup", Sender: models.SenderClient, Content: "b"}
		err := repo.AppendMessage(ctx, second)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "UNIQUE constraint failed")
	})

	t.Run("GetMessageByUUID returns nil when absent", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewTicketRepo(db)
		msg, err := repo.GetMessageByUUID(ctx, uuid.New(), "missing")
		require.NoError(t, err)
		assert.Nil(t, msg)
	})

	t.Run("GetMessageByClient spans solved tickets", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewTicketRepo(db)
		client := seedClient(t, db, "628300000006")

		ticket := &models.Ticket{OwnerID: client.OwnerID, ClientID: client.ID, Status: models.TicketStatusOpen}
		msg := &models.Message{MessageUUID: "m-history", Sender: models.SenderClient, Content: "bye"}
		require.NoError(t, repo.CreateWithFirstMessage(ctx, ticket, msg))
		require.NoError(t, repo.MarkSolved(ctx, ticket.ID))

		found, err := repo.GetMessageByClient(ctx, client.ID, "m-history")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, ticket.ID, found.TicketID)

		missing, err := repo.GetMessageByClient(ctx, client.ID, "m-other")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("MarkSolved closes the ticket", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewTicketRepo(db)
		client := seedClient(t, db, "628300000004")

		ticket := &models.Ticket{OwnerID: client.OwnerID, ClientID: client.ID, Status: models.TicketStatusOpen}
		msg := &models.Message{MessageUUID: "m1", Sender: models.SenderClient, Content: "x"}
		require.NoError(t, repo.CreateWithFirstMessage(ctx, ticket, msg))

		require.NoError(t, repo.MarkSolved(ctx, ticket.ID))

		open, err := repo.GetOpenByClient(ctx, client.ID)
		require.NoError(t, err)
		assert.Nil(t, open)
	})

	t.Run("ListMessages hides tombstoned rows", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewTicketRepo(db)
		client := seedClient(t, db, "628300000005")

		ticket := &models.Ticket{OwnerID: client.OwnerID, ClientID: client.ID, Status: models.TicketStatusOpen}
		first := &models.Message{MessageUUID: "m1", Sender: models.SenderClient, Content: "keep"}
		require.NoError(t, repo.CreateWithFirstMessage(ctx, ticket, first))

		deleted := &models.Message{TicketID: ticket.ID, MessageUUID: "m2", Sender: models.SenderClient, Content: "", IsDeleted: true}
		require.NoError(t, repo.AppendMessage(ctx, deleted))

		messages, err := repo.ListMessages(ctx, ticket.ID)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "keep", messages[0].Content)
	})
}

func TestEscalationRepo(t *testing.T) {
	ctx := context.Background()

	seedTicket := func(t *testing.T, db *gorm.DB, client *models.Client) *models.Ticket {
		ticket := &models.Ticket{OwnerID: client.OwnerID, ClientID: client.ID, Status: models.TicketStatusOpen}
		require.NoError(t, db.Create(ticket).Error)
		return ticket
	}

	t.Run("GetPendingByClient returns nil when none pending", func(t *testing.T) {
		repo := NewEscalationRepo(newTestDB(t))
		esc, err := repo.GetPendingByClient(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, esc)
	})

	t.Run("ResolveByTicket flips only pending escalations", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewEscalationRepo(db)
		client := seedClient(t, db, "628400000001")
		ticket := seedTicket(t, db, client)

		esc := &models.Escalation{
			OwnerID:  client.OwnerID,
			ClientID: client.ID,
			TicketID: ticket.ID,
			Status:   models.EscalationPending,
			Reason:   "low confidence",
		}
		require.NoError(t, repo.Create(ctx, esc))

		require.NoError(t, repo.ResolveByTicket(ctx, ticket.ID))

		pending, err := repo.GetPendingByClient(ctx, client.ID)
		require.NoError(t, err)
		assert.Nil(t, pending)

		stored, err := repo.GetByID(ctx, esc.ID)
		require.NoError(t, err)
		assert.Equal(t, models.EscalationResolved, stored.Status)
	})

	t.Run("ListPendingByOwner excludes resolved", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewEscalationRepo(db)
		client := seedClient(t, db, "628400000002")
		ticketA := seedTicket(t, db, client)
		ticketB := seedTicket(t, db, client)

		pending := &models.Escalation{OwnerID: client.OwnerID, ClientID: client.ID, TicketID: ticketA.ID, Status: models.EscalationPending}
		resolved := &models.Escalation{OwnerID: client.OwnerID, ClientID: client.ID, TicketID: ticketB.ID, Status: models.EscalationResolved}
		require.NoError(t, repo.Create(ctx, pending))
		require.NoError(t, repo.Create(ctx, resolved))

		list, err := repo.ListPendingByOwner(ctx, client.OwnerID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, pending.ID, list[0].ID)
	})
}

func TestKBRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("ReplaceChunks swaps the set and stamps the document", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewKBRepo(db)
		ownerID := uuid.New()

		doc := &models.Document{OwnerID: ownerID, Title: "guide"}
		require.NoError(t, repo.CreateDocument(ctx, doc))
		require.Nil(t, doc.ChunkedAt)

		oldChunks := []models.DocChunk{
			{OwnerID: ownerID, DocumentID: doc.ID, ChunkIndex: 0, Text: "old", TextHash: "h-old", TokenCount: 1},
		}
		require.NoError(t, repo.ReplaceChunks(ctx, doc, oldChunks))
		require.NotNil(t, doc.ChunkedAt)

		newChunks := []models.DocChunk{
			{OwnerID: ownerID, DocumentID: doc.ID, ChunkIndex: 0, Text: "new a", TextHash: "h-a", TokenCount: 2},
			{OwnerID: ownerID, DocumentID: doc.ID, ChunkIndex: 1, Text: "new b", TextHash: "h-b", TokenCount: 2},
		}
		require.NoError(t, repo.ReplaceChunks(ctx, doc, newChunks))

		stored, err := repo.GetChunksByDocument(ctx, doc.ID)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Equal(t, "new a", stored[0].Text)
		assert.Equal(t, "new b", stored[1].Text)
	})

	t.Run("identical chunk text at different positions is stored", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewKBRepo(db)
		ownerID := uuid.New()

		doc := &models.Document{OwnerID: ownerID, Title: "faq export"}
		require.NoError(t, repo.CreateDocument(ctx, doc))

		chunks := []models.DocChunk{
			{OwnerID: ownerID, DocumentID: doc.ID, ChunkIndex: 0, Text: "alpha beta", TextHash: "h-dup", TokenCount: 2},
			{OwnerID: ownerID, DocumentID: doc.ID, ChunkIndex: 1, Text: "gamma delta", TextHash: "h-mid", TokenCount: 2},
			{OwnerID: ownerID, DocumentID: doc.ID, ChunkIndex: 2, Text: "alpha beta", TextHash: "h-dup", TokenCount: 2},
		}
		require.NoError(t, repo.ReplaceChunks(ctx, doc, chunks))

		stored, err := repo.GetChunksByDocument(ctx, doc.ID)
		require.NoError(t, err)
		require.Len(t, stored, 3)
		assert.Equal(t, stored[0].TextHash, stored[2].TextHash)
	})

	t.Run("GetFaq returns nil when absent", func(t *testing.T) {
		repo := NewKBRepo(newTestDB(t))
		faq, err := repo.GetFaq(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, faq)
	})

	t.Run("ListOwnerIDs unions faq and document owners", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewKBRepo(db)

		faqOwner := uuid.New()
		docOwner := uuid.New()
		both := uuid.New()

		require.NoError(t, repo.CreateFaq(ctx, &models.Faq{OwnerID: faqOwner, Question: "q", Answer: "a"}))
		require.NoError(t, repo.CreateFaq(ctx, &models.Faq{OwnerID: both, Question: "q", Answer: "a"}))
		require.NoError(t, repo.CreateDocument(ctx, &models.Document{OwnerID: docOwner, Title: "d"}))
		require.NoError(t, repo.CreateDocument(ctx, &models.Document{OwnerID: both, Title: "d"}))

		owners, err := repo.ListOwnerIDs(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{faqOwner, docOwner, both}, owners)
	})
}

func TestRuleRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("ListActiveByOwner returns active rules in creation order", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewRuleRepo(db)
		ownerID := uuid.New()

		base := time.Now().Add(-time.Hour)
		first := &models.ThresholdRule{
			OwnerID:     ownerID,
			RuleName:    "first",
			TriggerType: models.TriggerKeyword,
			Keyword:     "refund",
			Action:      "escalate",
			IsActive:    true,
			CreatedAt:   base,
		}
		second := &models.ThresholdRule{
			OwnerID:             ownerID,
			RuleName:            "second",
			TriggerType:         models.TriggerSimilarity,
			ConfidenceThreshold: 0.7,
			IsActive:            true,
			CreatedAt:           base.Add(time.Minute),
		}
		inactive := &models.ThresholdRule{
			OwnerID:     ownerID,
			RuleName:    "off",
			TriggerType: models.TriggerKeyword,
			Keyword:     "x",
			Action:      "y",
			IsActive:    false,
			CreatedAt:   base.Add(2 * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.Create(ctx, second))
		require.NoError(t, repo.Create(ctx, inactive))

		rules, err := repo.ListActiveByOwner(ctx, ownerID)
		require.NoError(t, err)
		require.Len(t, rules, 2)
		assert.Equal(t, "first", rules[0].RuleName)
		assert.Equal(t, "second", rules[1].RuleName)
	})
}
