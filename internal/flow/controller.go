package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mariahq/maria/internal/catalog"
	"github.com/mariahq/maria/internal/reconcile"
	"github.com/mariahq/maria/internal/session"
)

// Controller is the conversation orchestrator. HandleEvent consumes one
// normalized inbound event, applies the state machine under the session
// store's per-key lock, and emits outbound messages.
//
// Error policy: a collaborator failure on the call that would justify a
// transition (reconcile, record create, relay) leaves the session in its
// pre-call state, so the contact's next message retries the same transition.
// A failure sending a prompt after the state has legitimately advanced is
// logged and abandoned; it never rolls the state back. No error is fatal.
type Controller struct {
	sessions   *session.Store
	reconciler *reconcile.Reconciler
	messenger  Messenger
	relay      Relay
	logger     *slog.Logger

	completer  Completer
	templateID string
}

// NewController creates a Controller.
func NewController(log *slog.Logger, sessions *session.Store, reconciler *reconcile.Reconciler, messenger Messenger, relay Relay) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		sessions:   sessions,
		reconciler: reconciler,
		messenger:  messenger,
		relay:      relay,
		logger:     log.With(slog.String("service", "flow")),
	}
}

// SetCompleter installs the optional AI fallback responder for free text
// during document collection.
func (c *Controller) SetCompleter(completer Completer) {
	c.completer = completer
}

// SetTemplateID installs the content template used for the welcome message.
// Without it a plain text welcome is sent.
func (c *Controller) SetTemplateID(id string) {
	c.templateID = id
}

// HandleEvent processes one inbound event. The key's lock is held for the
// whole read-modify-write including the network calls it triggers, which is
// what keeps two quick messages from the same contact from both reading the
// same stale state.
func (c *Controller) HandleEvent(ctx context.Context, ev Event) error {
	key := strings.TrimSpace(ev.ContactKey)
	if key == "" {
		return fmt.Errorf("contact key is required")
	}
	return c.sessions.With(key, func(v session.View) error {
		sess, ok := v.Get()
		if !ok {
			// Absence means start fresh, never an error.
			created, err := v.Create()
			if err != nil {
				return err
			}
			c.beginFlow(ctx, created, "")
			return nil
		}
		sess.Touch()
		c.advance(ctx, v, sess, ev)
		return nil
	})
}

// StartConversation opens the flow toward a known contact, used when the CRM
// notifies about a new record. If a conversation is already active the
// welcome is re-sent without disturbing its state.
func (c *Controller) StartConversation(ctx context.Context, contactKey, displayName string) error {
	key := strings.TrimSpace(contactKey)
	if key == "" {
		return fmt.Errorf("contact key is required")
	}
	return c.sessions.With(key, func(v session.View) error {
		if sess, ok := v.Get(); ok {
			c.logger.Info("conversation already active, re-sending welcome",
				slog.String("contact", key),
				slog.String("state", sess.State.String()))
			c.sendWelcome(ctx, key, displayName)
			return nil
		}
		sess, err := v.Create()
		if err != nil {
			return err
		}
		c.beginFlow(ctx, sess, displayName)
		return nil
	})
}

func (c *Controller) beginFlow(ctx context.Context, sess *session.Session, displayName string) {
	c.sendWelcome(ctx, sess.ContactKey, displayName)
	c.send(ctx, sess.ContactKey, promptAskIdentifier)
	sess.State = session.StateAskIdentifier
	c.logger.Info("conversation started", slog.String("contact", sess.ContactKey))
}

func (c *Controller) advance(ctx context.Context, v session.View, sess *session.Session, ev Event) {
	switch sess.State {
	case session.StateAskIdentifier:
		c.handleIdentifier(ctx, sess, ev.Text)
	case session.StateReconcilePending:
		c.handleName(ctx, sess, ev.Text)
	case session.StateAskFirstHome:
		if ClassifyYesNo(ev.Text) == Yes {
			sess.Answers.FirstHome = "sí"
		} else {
			sess.Answers.FirstHome = "no"
		}
		sess.State = session.StateAskHomeType
		c.send(ctx, sess.ContactKey, promptAskHomeType)
	case session.StateAskHomeType:
		sess.Answers.HomeType = string(ClassifyHomeType(ev.Text))
		sess.State = session.StateAskPrice
		c.send(ctx, sess.ContactKey, promptAskPrice)
	case session.StateAskPrice:
		// Stored raw; the evaluation team interprets it.
		sess.Answers.Price = strings.TrimSpace(ev.Text)
		sess.State = session.StateAskWorkerType
		c.send(ctx, sess.ContactKey, promptAskWorkerType)
	case session.StateAskWorkerType:
		c.handleWorkerType(ctx, sess, ev.Text)
	case session.StateCollectDocs:
		c.handleDocuments(ctx, v, sess, ev)
	default:
		c.logger.Warn("event in unexpected state",
			slog.String("contact", sess.ContactKey),
			slog.String("state", sess.State.String()))
	}
}

func (c *Controller) handleIdentifier(ctx context.Context, sess *session.Session, text string) {
	declared := strings.TrimSpace(text)
	res, err := c.reconciler.Reconcile(ctx, declared)
	if err != nil {
		// Integration error: state untouched so the next message retries.
		c.logger.Error("reconcile failed",
			slog.String("contact", sess.ContactKey), slog.Any("error", err))
		return
	}
	sess.Answers.Identifier = declared
	if res.Pending {
		sess.PendingIdentifier = declared
		sess.State = session.StateReconcilePending
		c.send(ctx, sess.ContactKey, promptAskName)
		return
	}
	sess.LinkedRecordID = res.RecordID
	sess.State = session.StateAskFirstHome
	c.send(ctx, sess.ContactKey, promptAskFirstHome)
}

func (c *Controller) handleName(ctx context.Context, sess *session.Session, text string) {
	name := strings.TrimSpace(text)
	if name == "" {
		c.send(ctx, sess.ContactKey, promptAskName)
		return
	}
	recordID, err := c.reconciler.CreateRecord(ctx, name, sess.PendingIdentifier, sess.ContactKey)
	if err != nil {
		c.logger.Error("create record failed",
			slog.String("contact", sess.ContactKey), slog.Any("error", err))
		return
	}
	sess.LinkedRecordID = recordID
	sess.PendingIdentifier = ""
	sess.State = session.StateAskFirstHome
	c.send(ctx, sess.ContactKey, promptRecordCreated(name))
	c.send(ctx, sess.ContactKey, promptAskFirstHome)
}

func (c *Controller) handleWorkerType(ctx context.Context, sess *session.Session, text string) {
	category, ok := ClassifyWorkerCategory(text)
	if !ok {
		// Validation error: re-prompt, stay in state, no mutation.
		c.send(ctx, sess.ContactKey, promptWorkerTypeRetry)
		return
	}
	sess.Answers.WorkerCategory = category
	sess.State = session.StateCollectDocs
	c.send(ctx, sess.ContactKey, promptDocumentChecklist(category))
}

func (c *Controller) handleDocuments(ctx context.Context, v session.View, sess *session.Session, ev Event) {
	if len(ev.Attachments) == 0 {
		c.handleCollectDocsText(ctx, sess, ev.Text)
		return
	}

	required := catalog.RequiredCount(sess.Answers.WorkerCategory)
	for _, att := range ev.Attachments {
		if sess.ReceivedDocuments >= required {
			c.logger.Info("document quota already met, ignoring extra attachment",
				slog.String("contact", sess.ContactKey))
			break
		}
		if err := c.relay.Relay(ctx, sess.ContactKey, att.URL, sess.LinkedRecordID); err != nil {
			// Resource error: skip this attachment, keep the rest of the
			// batch, and do not count it.
			c.logger.Error("attachment relay failed",
				slog.String("contact", sess.ContactKey), slog.Any("error", err))
			continue
		}
		sess.ReceivedDocuments++
		if sess.ReceivedDocuments >= required {
			c.send(ctx, sess.ContactKey, promptDone)
			sess.State = session.StateDone
			v.Delete()
			c.logger.Info("conversation completed",
				slog.String("contact", sess.ContactKey),
				slog.String("record_id", sess.LinkedRecordID))
			return
		}
		c.send(ctx, sess.ContactKey, promptDocumentReceived(sess.ReceivedDocuments, required))
	}
}

// handleCollectDocsText handles free text while documents are expected. The
// script defines no transition for it: without a completer it is ignored;
// with one, the contact gets a contextual reply and the state stays put.
func (c *Controller) handleCollectDocsText(ctx context.Context, sess *session.Session, text string) {
	if c.completer == nil || strings.TrimSpace(text) == "" {
		return
	}
	reply, err := c.completer.Complete(ctx, c.historyFor(sess, text))
	if err != nil {
		c.logger.Error("fallback completion failed",
			slog.String("contact", sess.ContactKey), slog.Any("error", err))
		return
	}
	if strings.TrimSpace(reply) != "" {
		c.send(ctx, sess.ContactKey, reply)
	}
}

func (c *Controller) historyFor(sess *session.Session, text string) []Turn {
	summary := fmt.Sprintf(
		"Eres MarIA, asistente de crédito hipotecario. El cliente (RUT %s, tipo de trabajador %s) está enviando sus documentos; lleva %d de %d. Responde breve y en español.",
		sess.Answers.Identifier,
		sess.Answers.WorkerCategory,
		sess.ReceivedDocuments,
		catalog.RequiredCount(sess.Answers.WorkerCategory),
	)
	return []Turn{
		{Role: "system", Content: summary},
		{Role: "user", Content: text},
	}
}

func (c *Controller) sendWelcome(ctx context.Context, to, displayName string) {
	if c.templateID != "" {
		vars := map[string]string{}
		if displayName != "" {
			vars["1"] = displayName
		}
		err := c.messenger.SendTemplate(ctx, to, c.templateID, vars)
		if err == nil {
			return
		}
		c.logger.Error("send template failed, falling back to text",
			slog.String("contact", to), slog.Any("error", err))
	}
	if displayName != "" {
		c.send(ctx, to, promptWelcomeNamed(displayName))
		return
	}
	c.send(ctx, to, promptWelcome)
}

// send delivers one outbound text; failures are logged and abandoned.
func (c *Controller) send(ctx context.Context, to, body string) {
	if err := c.messenger.SendText(ctx, to, body); err != nil {
		c.logger.Error("send message failed",
			slog.String("contact", to), slog.Any("error", err))
	}
}
