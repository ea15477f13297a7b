package db

import "context"

type UserStore interface {
	UpsertUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, userID int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	TouchUser(ctx context.Context, userID int64) error
	SetUserEmoji(ctx context.Context, userID int64, emoji string) error
	SetBan(ctx context.Context, userID int64, until string, reason string) error
	ClearBan(ctx context.Context, userID int64) error
	SetVIPUntil(ctx context.Context, userID int64, until string) error
	ClearVIP(ctx context.Context, userID int64) error
	ListActiveUserIDs(ctx context.Context) ([]int64, error)
	ListBannedUsers(ctx context.Context) ([]User, error)
	ListVIPUsers(ctx context.Context) ([]User, error)
	ListVIPExpiringWithin(ctx context.Context, days int) ([]User, error)
	GetUserStats(ctx context.Context, userID int64) (*UserStats, error)
}

type ConfessionStore interface {
	CreateConfession(ctx context.Context, c *Confession) (int64, error)
	GetConfession(ctx context.Context, confessionID int64) (*Confession, error)
	SetConfessionMedia(ctx context.Context, confessionID int64, mediaType, fileID string) error
	SetConfessionMessageID(ctx context.Context, confessionID int64, messageID int) error
	SetConfessionDeliveryStatus(ctx context.Context, confessionID int64, status DeliveryStatus) error
	// AdvanceRevealStatus performs a guarded from→to transition and reports
	// whether the row actually moved.
	AdvanceRevealStatus(ctx context.Context, confessionID int64, from, to RevealStatus) (bool, error)
	DeleteConfession(ctx context.Context, confessionID int64) error
	PurgeConfessionsOlderThan(ctx context.Context, days int) (int64, error)
	CountConfessionsReceived(ctx context.Context, userID int64) (int, error)
}

type ModerationStore interface {
	AddBlacklistWord(ctx context.Context, word string) (bool, error)
	RemoveBlacklistWord(ctx context.Context, word string) error
	ListBlacklistWords(ctx context.Context) ([]string, error)
	// AddWarning appends a warning and returns the user's resulting total,
	// counted in the same transaction as the insert.
	AddWarning(ctx context.Context, w *Warning) (int, error)
	RemoveLatestWarning(ctx context.Context, userID int64) error
	ListWarnings(ctx context.Context, userID int64) ([]Warning, error)
	CreateReport(ctx context.Context, confessionID, reporterID int64) (int64, error)
	GetReport(ctx context.Context, reportID int64) (*Report, error)
	DeleteReport(ctx context.Context, reportID int64) error
	ListReports(ctx context.Context) ([]Report, error)
	PurgeReportsOlderThan(ctx context.Context, days int) (int64, error)
}

type PromoStore interface {
	CreatePromoCode(ctx context.Context, p *PromoCode) error
	GetPromoCode(ctx context.Context, code string) (*PromoCode, error)
	DeletePromoCode(ctx context.Context, code string) error
	ListPromoCodes(ctx context.Context) ([]PromoCode, error)
	// ActivatePromoCode atomically checks remaining activations, decrements
	// the counter and records the (user, code) pair. Returns the granted VIP
	// days, ErrPromoExhausted or ErrPromoAlreadyActivated.
	ActivatePromoCode(ctx context.Context, userID int64, code string) (int, error)
	ListPromoActivations(ctx context.Context, code string) ([]PromoActivation, error)
}

type RoleStore interface {
	GetRole(ctx context.Context, userID int64) (string, error)
	SetRole(ctx context.Context, userID int64, role string, grantedBy int64) error
	RemoveRole(ctx context.Context, userID int64) error
	ListRoles(ctx context.Context) ([]AdminRole, error)
	AddAdminLog(ctx context.Context, entry *AdminLog) error
	ListAdminLogs(ctx context.Context, limit int) ([]AdminLog, error)
}

type GameStore interface {
	CreateWhoisGame(ctx context.Context, creatorID int64, joinToken string) (int64, error)
	GetWhoisGame(ctx context.Context, gameID int64) (*WhoisGame, error)
	GetWhoisGameByToken(ctx context.Context, joinToken string) (*WhoisGame, error)
	GetWhoisGameByCreator(ctx context.Context, creatorID int64, status GameStatus) (*WhoisGame, error)
	GetWhoisGameByOpponent(ctx context.Context, opponentID int64, status GameStatus) (*WhoisGame, error)
	// JoinWhoisGame attaches the opponent to a still-waiting game; the guard
	// is the WHERE clause, so a second joiner simply gets false.
	JoinWhoisGame(ctx context.Context, gameID, opponentID int64) (bool, error)
	// IncrementQuestionsAsked bumps the counter only while the game is
	// active and under the question budget.
	IncrementQuestionsAsked(ctx context.Context, gameID int64, budget int) (bool, error)
	CompleteWhoisGame(ctx context.Context, gameID, winnerID int64) (bool, error)
	DeleteWhoisGame(ctx context.Context, gameID int64) error

	AddBattleParticipant(ctx context.Context, userID int64) (bool, error)
	RemoveBattleParticipant(ctx context.Context, userID int64) error
	ListBattleParticipants(ctx context.Context) ([]int64, error)
	ClearBattleParticipants(ctx context.Context) error
}

type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key string, value string) error
}

type AchievementStore interface {
	CreateAchievement(ctx context.Context, name, description string) (int64, error)
	DeleteAchievement(ctx context.Context, achievementID int64) error
	GetAchievementByName(ctx context.Context, name string) (*Achievement, error)
	ListAchievements(ctx context.Context) ([]Achievement, error)
	AwardAchievement(ctx context.Context, userID, achievementID int64) (bool, error)
	RevokeAchievement(ctx context.Context, userID, achievementID int64) error
	ListUserAchievements(ctx context.Context, userID int64) ([]Achievement, error)
}

type NotificationStore interface {
	// MarkNotified records that a one-off notification kind was issued for
	// the user; false means it was already recorded.
	MarkNotified(ctx context.Context, userID int64, kind string) (bool, error)
}

type Client interface {
	Close() error
	UserStore
	ConfessionStore
	ModerationStore
	PromoStore
	RoleStore
	GameStore
	SettingsStore
	AchievementStore
	NotificationStore
}

type UserStats struct {
	Received int `db:"received"`
	Sent     int `db:"sent"`
	Reports  int `db:"reports"`
}
