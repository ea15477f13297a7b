package db

import (
	"database/sql"
	"time"
)

// TimeLayout is the format all expiry timestamps are stored in. Values that
// fail to parse back are treated as corrupt and resolved fail-closed by the
// entitlement engine.
const TimeLayout = "2006-01-02 15:04:05"

type (
	User struct {
		ID         int64          `db:"id"`
		Username   string         `db:"username"`
		FullName   string         `db:"full_name"`
		Banned     bool           `db:"banned"`
		BanUntil   sql.NullString `db:"ban_until"`
		BanReason  string         `db:"ban_reason"`
		VIPUntil   sql.NullString `db:"vip_until"`
		Emoji      string         `db:"emoji"`
		CreatedAt  string         `db:"created_at"`
		LastActive string         `db:"last_active"`
	}

	Confession struct {
		ID             int64          `db:"id"`
		FromUser       int64          `db:"from_user"`
		ToUser         int64          `db:"to_user"`
		MessageID      int            `db:"message_id"`
		Text           string         `db:"text"`
		MediaType      string         `db:"media_type"`
		MediaFileID    string         `db:"media_file_id"`
		RevealStatus   RevealStatus   `db:"reveal_status"`
		DeliveryStatus DeliveryStatus `db:"delivery_status"`
		IsVIPSender    bool           `db:"is_vip_sender"`
		CreatedAt      string         `db:"created_at"`
		CanEditUntil   sql.NullString `db:"can_edit_until"`
	}

	Report struct {
		ID           int64  `db:"id"`
		ConfessionID int64  `db:"confession_id"`
		ReporterID   int64  `db:"reporter_id"`
		CreatedAt    string `db:"created_at"`
	}

	PromoCode struct {
		Code            string         `db:"code"`
		Activations     int            `db:"activations"`
		ActivationsLeft int            `db:"activations_left"`
		VIPDays         int            `db:"vip_days"`
		CreatedBy       int64          `db:"created_by"`
		CreatedAt       string         `db:"created_at"`
		ExpiresAt       sql.NullString `db:"expires_at"`
	}

	PromoActivation struct {
		ID          int64  `db:"id"`
		UserID      int64  `db:"user_id"`
		PromoCode   string `db:"promo_code"`
		ActivatedAt string `db:"activated_at"`
	}

	AdminRole struct {
		UserID    int64  `db:"user_id"`
		Role      string `db:"role"`
		GrantedBy int64  `db:"granted_by"`
		GrantedAt string `db:"granted_at"`
	}

	Warning struct {
		ID        int64  `db:"id"`
		UserID    int64  `db:"user_id"`
		AdminID   int64  `db:"admin_id"`
		Reason    string `db:"reason"`
		CreatedAt string `db:"created_at"`
	}

	Achievement struct {
		ID          int64  `db:"id"`
		Name        string `db:"name"`
		Description string `db:"description"`
	}

	UserAchievement struct {
		UserID        int64  `db:"user_id"`
		AchievementID int64  `db:"achievement_id"`
		AwardedAt     string `db:"awarded_at"`
	}

	WhoisGame struct {
		ID             int64      `db:"id"`
		JoinToken      string     `db:"join_token"`
		CreatorID      int64      `db:"creator_id"`
		OpponentID     int64      `db:"opponent_id"`
		Status         GameStatus `db:"status"`
		QuestionsAsked int        `db:"questions_asked"`
		WinnerID       int64      `db:"winner_id"`
		CreatedAt      string     `db:"created_at"`
		UpdatedAt      string     `db:"updated_at"`
	}

	AdminLog struct {
		ID        int64  `db:"id"`
		AdminID   int64  `db:"admin_id"`
		Action    string `db:"action"`
		Details   string `db:"details"`
		CreatedAt string `db:"created_at"`
	}

	RevealStatus   string
	DeliveryStatus string
	GameStatus     string
)

const (
	RevealNone      RevealStatus = "none"
	RevealRequested RevealStatus = "requested"
	RevealAllowed   RevealStatus = "allowed"
	RevealDenied    RevealStatus = "denied"

	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryAbandoned DeliveryStatus = "abandoned"

	GameWaiting   GameStatus = "waiting"
	GameActive    GameStatus = "active"
	GameCompleted GameStatus = "completed"
)

const (
	MediaPhoto   = "photo"
	MediaVideo   = "video"
	MediaVoice   = "voice"
	MediaSticker = "sticker"
)

// FormatTime renders t in the stored expiry layout.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
