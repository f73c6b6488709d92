// Package notify sends Web Push notifications, e.g. to wake a callee's browser for an incoming call.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
)

// VAPIDKeys identify this server to push services.
type VAPIDKeys struct {
	PublicKey  string
	PrivateKey string
}

// LoadKeys returns the configured key pair, or a fresh one when either half is empty.
// Generated keys invalidate every existing browser subscription on restart.
func LoadKeys(public, private string) (keys VAPIDKeys, generated bool, err error) {
	if public != "" && private != "" {
		return VAPIDKeys{PublicKey: public, PrivateKey: private}, false, nil
	}
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return VAPIDKeys{}, false, fmt.Errorf("generate vapid keys: %w", err)
	}
	return VAPIDKeys{PublicKey: pub, PrivateKey: priv}, true, nil
}

// Notification is the JSON payload the client's service worker receives.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Type  string `json:"type,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Badge string `json:"badge,omitempty"`
}

// NotifierConfig configures a Notifier.
type NotifierConfig struct {
	Keys    VAPIDKeys
	Subject string // contact address; "mailto:" is optional
	TTL     int
	// HTTPClient overrides the client used to reach push services.
	HTTPClient webpush.HTTPClient
}

// Notifier delivers notifications to users' stored subscriptions.
type Notifier struct {
	subs   SubscriptionStore
	cfg    NotifierConfig
	logger *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(subs SubscriptionStore, cfg NotifierConfig, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Subject = strings.TrimPrefix(cfg.Subject, "mailto:")
	return &Notifier{subs: subs, cfg: cfg, logger: logger}
}

// PublicKey is the application server key browsers subscribe with.
func (n *Notifier) PublicKey() string { return n.cfg.Keys.PublicKey }

// Subscribe stores sub for userID, replacing any previous subscription.
func (n *Notifier) Subscribe(ctx context.Context, userID string, sub webpush.Subscription) error {
	return n.subs.Save(ctx, userID, sub)
}

// Notify pushes msg to userID. It reports false without error when the user has
// no subscription or the push service says the subscription is gone, in which
// case the subscription is dropped.
func (n *Notifier) Notify(ctx context.Context, userID string, msg Notification) (bool, error) {
	sub, err := n.subs.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		return false, nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return false, fmt.Errorf("marshal notification: %w", err)
	}
	resp, err := webpush.SendNotificationWithContext(ctx, body, sub, &webpush.Options{
		HTTPClient:      n.cfg.HTTPClient,
		Subscriber:      n.cfg.Subject,
		VAPIDPublicKey:  n.cfg.Keys.PublicKey,
		VAPIDPrivateKey: n.cfg.Keys.PrivateKey,
		TTL:             n.cfg.TTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return false, fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		n.logger.Info("push subscription expired", zap.String("user_id", userID), zap.Int("status", resp.StatusCode))
		if err := n.subs.Delete(ctx, userID); err != nil {
			n.logger.Warn("delete expired subscription failed", zap.String("user_id", userID), zap.Error(err))
		}
		return false, nil
	case resp.StatusCode >= 400:
		return false, fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	n.logger.Debug("notification sent", zap.String("user_id", userID), zap.String("type", msg.Type))
	return true, nil
}
