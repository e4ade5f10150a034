// workers/whatsapp_ingest.go
package workers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"habit-challenge-system/models"
	"habit-challenge-system/services"
	"habit-challenge-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InboundMessage is the canonical event emitted by the webhook normalizer:
// provider-specific payload fields are already flattened, only the parts
// the engine cares about remain.
type InboundMessage struct {
	MessageID string    // provider message id, doubles as the dedup token
	From      string    // raw sender phone, any format
	Text      string    // message body, expected to contain a task hashtag
	MediaURL  string    // provider-hosted image URL, empty when no proof attached
	Timestamp time.Time // provider's message timestamp
}

// WhatsAppIngestWorker turns inbound chat messages into check-ins. Each
// message is independent; all correctness lives in the check-in engine's
// idempotency guards, so a provider redelivering the whole webhook is safe.
type WhatsAppIngestWorker struct {
	db       *gorm.DB
	checkins *services.CheckinService
	gateway  *MessagingGateway
	queue    chan InboundMessage
}

func NewWhatsAppIngestWorker(db *gorm.DB, checkins *services.CheckinService, gateway *MessagingGateway) *WhatsAppIngestWorker {
	return &WhatsAppIngestWorker{
		db:       db,
		checkins: checkins,
		gateway:  gateway,
		queue:    make(chan InboundMessage, 256),
	}
}

// Enqueue hands a normalized message to the worker. Non-blocking: if the
// queue is full the message is dropped and the provider's redelivery picks
// it up later.
func (w *WhatsAppIngestWorker) Enqueue(msg InboundMessage) bool {
	select {
	case w.queue <- msg:
		return true
	default:
		log.Printf("[WA_INGEST] queue full, dropping message %s (provider will redeliver)", msg.MessageID)
		return false
	}
}

func (w *WhatsAppIngestWorker) Start(ctx context.Context) {
	log.Println("Starting WhatsApp Ingest Worker...")
	go w.run(ctx)
}

func (w *WhatsAppIngestWorker) run(ctx context.Context) {
	for {
		select {
		case msg := <-w.queue:
			signal := w.process(ctx, msg)
			if err := w.gateway.React(ctx, msg.MessageID, signal); err != nil {
				// Best-effort only; the check-in outcome stands.
				log.Printf("[WA_INGEST] reaction failed for %s: %v", msg.MessageID, err)
			}
		case <-ctx.Done():
			log.Println("WhatsApp Ingest Worker stopped")
			return
		}
	}
}

// process resolves identity, stores proof, and records the check-in,
// returning the ack signal. Duplicates are success by contract: the
// provider retries on non-ack, and surfacing a duplicate as failure would
// only amplify the retries.
func (w *WhatsAppIngestWorker) process(ctx context.Context, msg InboundMessage) string {
	user, err := w.resolveUser(msg.From)
	if err != nil {
		log.Printf("[WA_INGEST] unresolved sender %q (message %s): %v", msg.From, msg.MessageID, err)
		return ReactionFailure
	}

	hashtag := ExtractHashtag(msg.Text)
	if hashtag == "" {
		log.Printf("[WA_INGEST] no hashtag in message %s from user %d", msg.MessageID, user.ID)
		return ReactionFailure
	}

	participation, task, err := w.resolveTask(user.ID, hashtag)
	if err != nil {
		log.Printf("[WA_INGEST] no active participation matches #%s for user %d: %v", hashtag, user.ID, err)
		return ReactionFailure
	}

	// Proof image: fetch + store before touching the engine, so a fetch
	// failure leaves no partial state.
	var imageURL *string
	if msg.MediaURL != "" {
		data, contentType, err := w.gateway.FetchMedia(ctx, msg.MediaURL)
		if err != nil {
			log.Printf("[WA_INGEST] discarding message %s, media fetch failed: %v", msg.MessageID, err)
			return ReactionFailure
		}
		url, err := utils.UploadBytesToR2(data, "proofs/whatsapp/"+uuid.NewString()+".jpg", contentType)
		if err != nil {
			log.Printf("[WA_INGEST] discarding message %s, proof upload failed: %v", msg.MessageID, err)
			return ReactionFailure
		}
		imageURL = &url
	}

	occurredAt := msg.Timestamp
	if occurredAt.IsZero() {
		occurredAt = w.checkins.Clock.Now()
	}
	token := msg.MessageID
	var message *string
	if text := strings.TrimSpace(msg.Text); text != "" {
		message = &text
	}

	result, err := w.checkins.Record(services.CheckinEvent{
		ParticipationID: participation.ID,
		TaskID:          task.ID,
		OccurredAt:      occurredAt,
		DedupToken:      &token,
		Source:          models.CheckinSourceWhatsApp,
		Message:         message,
		ImageURL:        imageURL,
	})
	if err != nil {
		if errors.Is(err, services.ErrOutsideWindow) || errors.Is(err, services.ErrParticipationNotActive) {
			log.Printf("[WA_INGEST] rejected message %s: %v", msg.MessageID, err)
			return ReactionFailure
		}
		log.Printf("[WA_INGEST] storage error for message %s: %v", msg.MessageID, err)
		return ReactionFailure
	}

	log.Printf("[WA_INGEST] message %s -> participation %d task %d (%s)",
		msg.MessageID, participation.ID, task.ID, result.Outcome)
	return ReactionSuccess
}

// resolveUser matches a raw sender phone against mirrored contacts, trying
// every canonical variation (Brazilian numbers are stored with or without
// the mobile prefix digit).
func (w *WhatsAppIngestWorker) resolveUser(rawPhone string) (*models.User, error) {
	variations := utils.PhoneVariations(rawPhone)
	if len(variations) == 0 {
		return nil, errors.New("unparseable phone number")
	}
	var user models.User
	if err := w.db.Where("phone_number IN ?", variations).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// resolveTask finds the task with the given hashtag among the user's
// active participations. Hashtags are only unique per scope, so the search
// is restricted to challenges the user is actually enrolled in.
func (w *WhatsAppIngestWorker) resolveTask(userID uint, hashtag string) (*models.Participation, *models.Task, error) {
	var participations []models.Participation
	err := w.db.Preload("Challenge.Tasks").
		Where("user_id = ? AND status = ?", userID, models.ParticipationActive).
		Find(&participations).Error
	if err != nil {
		return nil, nil, err
	}
	for i := range participations {
		for _, task := range participations[i].Challenge.Tasks {
			if task.Hashtag == hashtag {
				return &participations[i], &task, nil
			}
		}
	}
	return nil, nil, gorm.ErrRecordNotFound
}

// ExtractHashtag pulls the task hashtag out of a message body: the first
// #-prefixed token, or the first word when no explicit hashtag is present.
// Accents and case are normalized away ("#Água" matches task "agua").
func ExtractHashtag(text string) string {
	fields := strings.Fields(text)
	for _, f := range fields {
		if strings.HasPrefix(f, "#") {
			return services.NormalizeHashtag(f)
		}
	}
	if len(fields) > 0 {
		return services.NormalizeHashtag(fields[0])
	}
	return ""
}
