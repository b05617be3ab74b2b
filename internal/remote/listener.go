package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/gymdesk/gymsync/internal/common"
	"github.com/jackc/pgx/v5"
)

// reconnectDelay paces listener reconnects after a dropped connection.
const reconnectDelay = 5 * time.Second

// Subscribe opens a dedicated native connection, LISTENs on the subscriber
// change channel and invokes onChange for every notification scoped to
// ownerID (the notification payload carries the owner id of the touched
// row). The subscription runs until ctx is cancelled; dropped connections
// are re-established with a delay.
func (s *PostgresStore) Subscribe(ctx context.Context, ownerID string, onChange func()) error {
	if s.dsn == "" {
		return fmt.Errorf("store has no DSN, realtime unavailable")
	}

	conn, err := s.listen(ctx)
	if err != nil {
		return fmt.Errorf("failed to start realtime subscription: %w", err)
	}

	go func() {
		defer func() {
			if conn != nil {
				_ = conn.Close(context.Background())
			}
		}()

		for {
			if ctx.Err() != nil {
				return
			}

			if conn == nil {
				var err error
				conn, err = s.listen(ctx)
				if err != nil {
					s.logger.Warn(ctx, "realtime reconnect failed", "error", err)
					select {
					case <-time.After(reconnectDelay):
					case <-ctx.Done():
						return
					}
					continue
				}
				// a gap may have been missed while disconnected
				onChange()
			}

			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn(ctx, "realtime connection lost", "error", err)
				_ = conn.Close(context.Background())
				conn = nil
				continue
			}
			if n.Payload == ownerID {
				onChange()
			}
		}
	}()

	return nil
}

func (s *PostgresStore) listen(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+common.NotifyChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, err
	}
	return conn, nil
}
