package notif

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/hashicorp/go-multierror"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/stableminer/stableminer/dexy"
)

const (
	DefaultMintsSubject = "notif.mints"

	notifType    = "mint"
	ackTimeout   = 10 * time.Second
	pendingTTL   = 336 * time.Hour
	walletSubjFn = "notif.%s"
)

var (
	ErrNoConnection = errors.New("nats connection is not configured")
)

// Service publishes mint notifications. Notices published on the mints
// subject are delivered to the wallet's own subject and wait for an ack; an
// unacknowledged notice is kept in redis until the wallet asks for it again.
type Service struct {
	ctx     context.Context
	nats    *nats.Conn
	rdb     *redis.Client
	subject string
	sub     *nats.Subscription
	ackWait time.Duration
}

type Notif struct {
	Type       string `json:"type"      redis:"type"`
	WalletAddr string `json:"address"   redis:"address"`
	Mode       string `json:"mode"      redis:"mode"`
	Amount     string `json:"amount"    redis:"amount"`
	TokenName  string `json:"tokenName" redis:"tokenName"`
	TxID       string `json:"txid"      redis:"txid"`
}

func (n Notif) MarshalBinary() ([]byte, error) {
	return json.Marshal(n)
}

func (n Notif) redisKey() string {
	return pendingKey(n.Type, n.WalletAddr, n.TxID)
}

func pendingKey(typ, walletAddr, txID string) string {
	return fmt.Sprintf("notif:%s:%s:%s", typ, walletAddr, txID)
}

// NewService subscribes to subject. rdb may be nil, in which case notices
// nobody acknowledges are dropped.
func NewService(nc *nats.Conn, rdb *redis.Client, subject string) (*Service, error) {
	if nc == nil {
		return nil, ErrNoConnection
	}
	if subject == "" {
		subject = DefaultMintsSubject
	}

	service := &Service{
		ctx:     context.Background(),
		nats:    nc,
		rdb:     rdb,
		subject: subject,
		ackWait: ackTimeout,
	}

	sub, err := nc.Subscribe(subject, service.handleNATSMessages)
	if err != nil {
		return nil, err
	}
	service.sub = sub
	zap.L().Info("successfully subscribed to " + subject)

	return service, nil
}

// NotifyMint publishes a broadcast mint on the mints subject.
func (s *Service) NotifyMint(ctx context.Context, notice dexy.MintNotice) error {
	data, err := json.Marshal(Notif{
		Type:       notifType,
		WalletAddr: notice.Address,
		Mode:       string(notice.Mode),
		Amount:     notice.Amount,
		TokenName:  notice.TokenName,
		TxID:       notice.TxID,
	})
	if err != nil {
		return err
	}
	if err := s.nats.Publish(s.subject, data); err != nil {
		return fmt.Errorf("failed to publish mint notification - %w", err)
	}
	return nil
}

// ResendPending republishes every stored notice for walletAddr and returns
// how many were sent.
func (s *Service) ResendPending(ctx context.Context, walletAddr string) (int, error) {
	if s.rdb == nil {
		return 0, nil
	}
	log := zap.L()

	var count int
	var errs *multierror.Error
	match := pendingKey(notifType, walletAddr, "*")
	iter := s.rdb.Scan(ctx, 0, match, 0).Iterator()
	for iter.Next(ctx) {
		n, err := s.rdb.Get(ctx, iter.Val()).Result()
		if err != nil {
			log.Error("failed to get notification from redis db", zap.Error(err), zap.String("redis_key", iter.Val()))
			errs = multierror.Append(errs, err)
			continue
		}
		if err := s.nats.Publish(s.subject, []byte(n)); err != nil {
			log.Error("failed to send notification to nats queue", zap.Error(err), zap.String("wallet_addr", walletAddr))
			errs = multierror.Append(errs, err)
			continue
		}
		count++
	}
	if err := iter.Err(); err != nil {
		errs = multierror.Append(errs, err)
	}

	return count, errs.ErrorOrNil()
}

// Stop drains the subscription so queued notices are still delivered.
func (s *Service) Stop() {
	if s.sub != nil {
		if err := s.sub.Drain(); err != nil {
			zap.L().Error("failed to drain notification subscription", zap.Error(err))
		}
	}
}

// handleNATSMessages is called on receipt of a new NATS message.
func (s *Service) handleNATSMessages(msg *nats.Msg) {
	log := zap.L()

	var notif Notif
	if err := json.Unmarshal(msg.Data, &notif); err != nil {
		log.Error("failed to unmarshal Notif", zap.Error(err))
		return
	}

	// attempt to send notification to wallet address
	subj := fmt.Sprintf(walletSubjFn, notif.WalletAddr)
	inbox := nats.NewInbox()
	reply, err := s.nats.SubscribeSync(inbox)
	if err != nil {
		log.Error("failed to subscribe to inbox subject", zap.Error(err), zap.String("inbox_subject", inbox))
		return
	}
	if err := reply.AutoUnsubscribe(1); err != nil {
		log.Error("failed to set inbox auto unsubscribe", zap.Error(err), zap.String("inbox_subject", inbox))
	}

	if err := s.nats.PublishRequest(subj, inbox, msg.Data); err != nil {
		log.Error("failed to publish notification to subject", zap.Error(err), zap.String("subject", subj))
		return
	}

	log.Debug("sent notification to wallet",
		zap.String("type", notif.Type),
		zap.String("wallet_addr", notif.WalletAddr),
		zap.String("amount", notif.Amount),
		zap.String("token_name", notif.TokenName),
		zap.String("tx_id", notif.TxID),
	)

	key := notif.redisKey()
	if _, err := reply.NextMsg(s.ackWait); err != nil {
		log.Debug("notification ack not received",
			zap.Error(err),
			zap.String("wallet_addr", notif.WalletAddr),
			zap.String("tx_id", notif.TxID),
		)
		s.storePending(key, notif)
		return
	}

	if s.rdb == nil {
		return
	}
	log.Debug("notification ack received, removing notification from redis db", zap.String("redis_key", key))
	if err := s.rdb.Del(s.ctx, key).Err(); err != nil {
		log.Error("failed to remove notification from redis db", zap.Error(err), zap.String("redis_key", key))
	}
}

func (s *Service) storePending(key string, notif Notif) {
	if s.rdb == nil {
		return
	}
	log := zap.L()

	result, err := s.rdb.Get(s.ctx, key).Result()
	switch {
	case err == redis.Nil || (err == nil && result == ""):
		if err := s.rdb.Set(s.ctx, key, notif, pendingTTL).Err(); err != nil {
			log.Error("failed to set key in redis db", zap.Error(err), zap.String("redis_key", key))
			return
		}
		log.Debug("notification stored in redis db", zap.String("redis_key", key))
	case err != nil:
		log.Error("failed to get key from redis db", zap.Error(err), zap.String("redis_key", key))
	}
}
