package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/AMOryC91/anonym/internal/bot"
	"github.com/AMOryC91/anonym/internal/broadcast"
	"github.com/AMOryC91/anonym/internal/confession"
	"github.com/AMOryC91/anonym/internal/db"
	"github.com/AMOryC91/anonym/internal/entitlement"
	apperrors "github.com/AMOryC91/anonym/internal/errors"
	"github.com/AMOryC91/anonym/internal/event"
	"github.com/AMOryC91/anonym/internal/i18n"
	"github.com/AMOryC91/anonym/internal/moderation"
	"github.com/AMOryC91/anonym/internal/observability"
)

// Admin is the moderation and administration surface. Every command is
// authorization-checked against the role ladder before it runs.
type Admin struct {
	s            bot.Service
	entitlements entitlementService
	warner       *moderation.Warner
	blacklist    *moderation.Blacklist
	reports      *moderation.Reports
	confessions  *confession.Service
	broadcaster  *broadcast.Broadcaster
}

func NewAdmin(s bot.Service, entitlements entitlementService, warner *moderation.Warner, blacklist *moderation.Blacklist, reports *moderation.Reports, confessions *confession.Service, broadcaster *broadcast.Broadcaster) *Admin {
	return &Admin{
		s:            s,
		entitlements: entitlements,
		warner:       warner,
		blacklist:    blacklist,
		reports:      reports,
		confessions:  confessions,
		broadcaster:  broadcaster,
	}
}

func (h *Admin) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if user == nil || user.IsBot {
		return true, nil
	}
	if u.CallbackQuery != nil {
		data := u.CallbackQuery.Data
		if strings.HasPrefix(data, "rep:") {
			return h.handleReportCallback(ctx, u.CallbackQuery, user)
		}
		return true, nil
	}
	if chat == nil || u.Message == nil || !u.Message.IsCommand() {
		return true, nil
	}
	m := u.Message
	lang := h.s.GetLanguage(ctx, user)

	required, handler := h.route(m.Command())
	if handler == nil {
		return true, nil
	}
	allowed, err := h.entitlements.HasRole(ctx, user.ID, required)
	if err != nil {
		return false, errors.WithMessage(err, "role check")
	}
	if !allowed {
		// Commands of a higher grade look like unknown commands to everyone
		// else; no information leaks about the admin surface.
		return true, nil
	}
	return handler(ctx, m, user, lang)
}

type adminCommand func(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error)

func (h *Admin) route(command string) (entitlement.Role, adminCommand) {
	switch command {
	case "stats":
		return entitlement.RoleModerator, h.cmdStats
	case "reports":
		return entitlement.RoleModerator, h.cmdReports
	case "banned":
		return entitlement.RoleModerator, h.cmdBannedList
	case "warn":
		return entitlement.RoleModerator, h.cmdWarn
	case "unwarn":
		return entitlement.RoleModerator, h.cmdUnwarn
	case "bl_add":
		return entitlement.RoleModerator, h.cmdBlacklistAdd
	case "bl_remove":
		return entitlement.RoleModerator, h.cmdBlacklistRemove
	case "bl_list":
		return entitlement.RoleModerator, h.cmdBlacklistList
	case "conf_delete":
		return entitlement.RoleModerator, h.cmdConfessionDelete
	case "ban":
		return entitlement.RoleAdmin, h.cmdBan
	case "unban":
		return entitlement.RoleAdmin, h.cmdUnban
	case "vip_add":
		return entitlement.RoleAdmin, h.cmdVIPAdd
	case "vip_remove":
		return entitlement.RoleAdmin, h.cmdVIPRemove
	case "vip_list":
		return entitlement.RoleAdmin, h.cmdVIPList
	case "promo_create":
		return entitlement.RoleAdmin, h.cmdPromoCreate
	case "promo_delete":
		return entitlement.RoleAdmin, h.cmdPromoDelete
	case "promo_list":
		return entitlement.RoleAdmin, h.cmdPromoList
	case "promo_activations":
		return entitlement.RoleAdmin, h.cmdPromoActivations
	case "ach_create":
		return entitlement.RoleAdmin, h.cmdAchievementCreate
	case "ach_award":
		return entitlement.RoleAdmin, h.cmdAchievementAward
	case "ach_revoke":
		return entitlement.RoleAdmin, h.cmdAchievementRevoke
	case "ach_delete":
		return entitlement.RoleAdmin, h.cmdAchievementDelete
	case "ach_list":
		return entitlement.RoleAdmin, h.cmdAchievementList
	case "maintenance_on":
		return entitlement.RoleAdmin, h.cmdMaintenanceOn
	case "maintenance_off":
		return entitlement.RoleAdmin, h.cmdMaintenanceOff
	case "whois_toggle":
		return entitlement.RoleAdmin, h.cmdWhoisToggle
	case "battle_toggle":
		return entitlement.RoleAdmin, h.cmdBattleToggle
	case "battle_clear":
		return entitlement.RoleAdmin, h.cmdBattleClear
	case "broadcast":
		return entitlement.RoleAdmin, h.cmdBroadcast
	case "cleanup":
		return entitlement.RoleAdmin, h.cmdCleanup
	case "logs":
		return entitlement.RoleAdmin, h.cmdLogs
	case "role_set":
		return entitlement.RoleOwner, h.cmdRoleSet
	case "role_remove":
		return entitlement.RoleOwner, h.cmdRoleRemove
	case "roles":
		return entitlement.RoleOwner, h.cmdRoles
	}
	return entitlement.RoleNone, nil
}

func (h *Admin) cmdStats(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	client := h.s.GetDB()
	activeIDs, err := client.ListActiveUserIDs(ctx)
	if err != nil {
		return false, errors.WithMessage(err, "list active users")
	}
	bannedUsers, err := client.ListBannedUsers(ctx)
	if err != nil {
		return false, errors.WithMessage(err, "list banned")
	}
	vipUsers, err := client.ListVIPUsers(ctx)
	if err != nil {
		return false, errors.WithMessage(err, "list vips")
	}
	openReports, err := h.reports.List(ctx)
	if err != nil {
		return false, errors.WithMessage(err, "list reports")
	}
	text := fmt.Sprintf("Users: %d\nBanned: %d\nVIP: %d\nOpen reports: %d",
		len(activeIDs), len(bannedUsers), len(vipUsers), len(openReports))
	reply(h.s.GetBot(), user.ID, text)
	return false, nil
}

func (h *Admin) cmdReports(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	openReports, err := h.reports.List(ctx)
	if err != nil {
		return false, errors.WithMessage(err, "list reports")
	}
	if len(openReports) == 0 {
		reply(b, user.ID, i18n.Get("No open reports.", lang))
		return false, nil
	}
	for _, report := range openReports {
		markup := api.NewInlineKeyboardMarkup(api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData("Ban 7d", fmt.Sprintf("rep:ban:%d", report.ID)),
			api.NewInlineKeyboardButtonData("Dismiss", fmt.Sprintf("rep:dismiss:%d", report.ID)),
		))
		replyMarkup(b, user.ID, fmt.Sprintf("Report #%d, confession #%d", report.ID, report.ConfessionID), markup)
	}
	return false, nil
}

func (h *Admin) handleReportCallback(ctx context.Context, cb *api.CallbackQuery, user *api.User) (bool, error) {
	b := h.s.GetBot()
	lang := h.s.GetLanguage(ctx, user)
	allowed, err := h.entitlements.HasRole(ctx, user.ID, entitlement.RoleModerator)
	if err != nil {
		return false, errors.WithMessage(err, "role check")
	}
	if !allowed {
		answerCallback(b, cb.ID, i18n.Get("Not allowed.", lang))
		return false, nil
	}

	parts := strings.Split(cb.Data, ":")
	if len(parts) != 3 {
		return false, nil
	}
	reportID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return false, nil
	}

	switch parts[1] {
	case "ban":
		bannedID, err := h.reports.ResolveBan(ctx, reportID, 7, "reported confession")
		if stderrors.Is(err, apperrors.ErrNotFound) {
			answerCallback(b, cb.ID, i18n.Get("Already handled.", lang))
			return false, nil
		}
		if err != nil {
			return false, errors.WithMessage(err, "resolve report")
		}
		observability.RecordBan("report")
		h.audit(ctx, user.ID, "report_ban", fmt.Sprintf("report=%d user=%d", reportID, bannedID))
		event.Bus.NQ(event.NewUserNotice(bannedID, i18n.Get("You were banned for 7 days after a report.", lang)))
		answerCallback(b, cb.ID, i18n.Get("Sender banned.", lang))
	case "dismiss":
		if err := h.reports.Dismiss(ctx, reportID); err != nil && !stderrors.Is(err, apperrors.ErrNotFound) {
			return false, errors.WithMessage(err, "dismiss report")
		}
		h.audit(ctx, user.ID, "report_dismiss", fmt.Sprintf("report=%d", reportID))
		answerCallback(b, cb.ID, i18n.Get("Dismissed.", lang))
	}
	return false, nil
}

func (h *Admin) cmdBannedList(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	banned, err := h.s.GetDB().ListBannedUsers(ctx)
	if err != nil {
		return false, errors.WithMessage(err, "list banned")
	}
	if len(banned) == 0 {
		reply(h.s.GetBot(), user.ID, i18n.Get("Nobody is banned.", lang))
		return false, nil
	}
	var sb strings.Builder
	for _, u := range banned {
		until := "permanent"
		if u.BanUntil.Valid {
			until = "until " + u.BanUntil.String
		}
		sb.WriteString(fmt.Sprintf("%d @%s %s", u.ID, u.Username, until))
		if u.BanReason != "" {
			sb.WriteString(" (" + u.BanReason + ")")
		}
		sb.WriteString("\n")
	}
	reply(h.s.GetBot(), user.ID, sb.String())
	return false, nil
}

func (h *Admin) cmdWarn(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	args := strings.Fields(m.CommandArguments())
	if len(args) < 1 {
		reply(b, user.ID, "/warn <user> [reason]")
		return false, nil
	}
	targetID, err := h.resolveUser(ctx, args[0])
	if err != nil {
		reply(b, user.ID, i18n.Get("Unknown user.", lang))
		return false, nil
	}
	reason := strings.Join(args[1:], " ")
	banned, count, err := h.warner.Warn(ctx, targetID, user.ID, reason)
	if err != nil {
		return false, errors.WithMessage(err, "warn")
	}
	h.audit(ctx, user.ID, "warn", fmt.Sprintf("user=%d count=%d", targetID, count))
	if banned {
		observability.RecordBan("automatic")
		event.Bus.NQ(event.NewUserNotice(targetID, i18n.Get("You were banned permanently after repeated warnings.", lang)))
		reply(b, user.ID, fmt.Sprintf(i18n.Get("Warning %d of 3 issued. The user is now banned.", lang), count))
		return false, nil
	}
	event.Bus.NQ(event.NewUserNotice(targetID,
		fmt.Sprintf(i18n.Get("You received a warning (%d of 3). The next ones lead to a ban.", lang), count)))
	reply(b, user.ID, fmt.Sprintf(i18n.Get("Warning %d of 3 issued.", lang), count))
	return false, nil
}

func (h *Admin) cmdUnwarn(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	targetID, err := h.resolveUser(ctx, strings.TrimSpace(m.CommandArguments()))
	if err != nil {
		reply(b, user.ID, i18n.Get("Unknown user.", lang))
		return false, nil
	}
	if err := h.warner.Unwarn(ctx, targetID); err != nil {
		return false, errors.WithMessage(err, "unwarn")
	}
	h.audit(ctx, user.ID, "unwarn", fmt.Sprintf("user=%d", targetID))
	reply(b, user.ID, i18n.Get("Latest warning removed.", lang))
	return false, nil
}

func (h *Admin) cmdBan(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	args := strings.Fields(m.CommandArguments())
	if len(args) < 1 {
		reply(b, user.ID, "/ban <user> [days] [reason]")
		return false, nil
	}
	targetID, err := h.resolveUser(ctx, args[0])
	if err != nil {
		reply(b, user.ID, i18n.Get("Unknown user.", lang))
		return false, nil
	}
	days := 0
	reasonFrom := 1
	if len(args) > 1 {
		if parsed, err := strconv.Atoi(args[1]); err == nil {
			days = parsed
			reasonFrom = 2
		}
	}
	reason := strings.Join(args[reasonFrom:], " ")
	if err := h.entitlements.Ban(ctx, targetID, days, reason); err != nil {
		return false, errors.WithMessage(err, "ban")
	}
	observability.RecordBan("manual")
	h.audit(ctx, user.ID, "ban", fmt.Sprintf("user=%d days=%d reason=%q", targetID, days, reason))
	notice := i18n.Get("You were banned permanently.", lang)
	if days > 0 {
		notice = fmt.Sprintf(i18n.Get("You were banned for %d days.", lang), days)
	}
	event.Bus.NQ(event.NewUserNotice(targetID, notice))
	reply(b, user.ID, i18n.Get("Done.", lang))
	return false, nil
}

func (h *Admin) cmdUnban(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	targetID, err := h.resolveUser(ctx, strings.TrimSpace(m.CommandArguments()))
	if err != nil {
		reply(b, user.ID, i18n.Get("Unknown user.", lang))
		return false, nil
	}
	if err := h.entitlements.Unban(ctx, targetID); err != nil {
		return false, errors.WithMessage(err, "unban")
	}
	h.audit(ctx, user.ID, "unban", fmt.Sprintf("user=%d", targetID))
	event.Bus.NQ(event.NewUserNotice(targetID, i18n.Get("Your ban was lifted.", lang)))
	reply(b, user.ID, i18n.Get("Done.", lang))
	return false, nil
}

func (h *Admin) cmdVIPAdd(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	args := strings.Fields(m.CommandArguments())
	if len(args) != 2 {
		reply(b, user.ID, "/vip_add <user> <days>")
		return false, nil
	}
	targetID, err := h.resolveUser(ctx, args[0])
	if err != nil {
		reply(b, user.ID, i18n.Get("Unknown user.", lang))
		return false, nil
	}
	days, err := strconv.Atoi(args[1])
	if err != nil || days < 1 {
		reply(b, user.ID, "/vip_add <user> <days>")
		return false, nil
	}
	if err := h.entitlements.AddVIPDays(ctx, targetID, days); err != nil {
		// Never-seen numeric IDs have no row to extend.
		if stderrors.Is(err, db.ErrNotFound) {
			reply(b, user.ID, i18n.Get("Unknown user.", lang))
			return false, nil
		}
		return false, errors.WithMessage(err, "add vip")
	}
	h.audit(ctx, user.ID, "vip_add", fmt.Sprintf("user=%d days=%d", targetID, days))
	event.Bus.NQ(event.NewUserNotice(targetID,
		fmt.Sprintf(i18n.Get("You got %d days of VIP. Enjoy!", lang), days)))
	reply(b, user.ID, i18n.Get("Done.", lang))
	return false, nil
}

func (h *Admin) cmdVIPRemove(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	targetID, err := h.resolveUser(ctx, strings.TrimSpace(m.CommandArguments()))
	if err != nil {
		reply(b, user.ID, i18n.Get("Unknown user.", lang))
		return false, nil
	}
	if err := h.entitlements.RemoveVIP(ctx, targetID); err != nil {
		return false, errors.WithMessage(err, "remove vip")
	}
	h.audit(ctx, user.ID, "vip_remove", fmt.Sprintf("user=%d", targetID))
	reply(b, user.ID, i18n.Get("Done.", lang))
	return false, nil
}

func (h *Admin) cmdVIPList(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	vips, err := h.s.GetDB().ListVIPUsers(ctx)
	if err != nil {
		return false, errors.WithMessage(err, "list vips")
	}
	if len(vips) == 0 {
		reply(b, user.ID, i18n.Get("No VIP users.", lang))
		return false, nil
	}
	var sb strings.Builder
	for _, vip := range vips {
		sb.WriteString(fmt.Sprintf("%d @%s until %s\n", vip.ID, vip.Username, vip.VIPUntil.String))
	}
	reply(b, user.ID, sb.String())
	return false, nil
}

func (h *Admin) cmdBlacklistAdd(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	word := strings.TrimSpace(m.CommandArguments())
	added, err := h.blacklist.Add(ctx, word)
	if err != nil {
		return false, errors.WithMessage(err, "blacklist add")
	}
	if !added {
		reply(b, user.ID, i18n.Get("Already on the list.", lang))
		return false, nil
	}
	h.audit(ctx, user.ID, "blacklist_add", word)
	reply(b, user.ID, i18n.Get("Added.", lang))
	return false, nil
}

func (h *Admin) cmdBlacklistRemove(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	word := strings.TrimSpace(m.CommandArguments())
	if err := h.blacklist.Remove(ctx, word); err != nil {
		return false, errors.WithMessage(err, "blacklist remove")
	}
	h.audit(ctx, user.ID, "blacklist_remove", word)
	reply(h.s.GetBot(), user.ID, i18n.Get("Removed.", lang))
	return false, nil
}

func (h *Admin) cmdBlacklistList(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	words, err := h.blacklist.List(ctx)
	if err != nil {
		return false, errors.WithMessage(err, "blacklist list")
	}
	if len(words) == 0 {
		reply(h.s.GetBot(), user.ID, i18n.Get("The blacklist is empty.", lang))
		return false, nil
	}
	reply(h.s.GetBot(), user.ID, strings.Join(words, ", "))
	return false, nil
}

func (h *Admin) cmdConfessionDelete(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	confessionID, err := strconv.ParseInt(strings.TrimSpace(m.CommandArguments()), 10, 64)
	if err != nil {
		reply(b, user.ID, "/conf_delete <id>")
		return false, nil
	}
	row, err := h.confessions.Delete(ctx, confessionID)
	if stderrors.Is(err, apperrors.ErrNotFound) {
		reply(b, user.ID, i18n.Get("Not found.", lang))
		return false, nil
	}
	if err != nil {
		return false, errors.WithMessage(err, "delete confession")
	}
	// Retracting the delivered message is best-effort; the row is gone either way.
	if row.MessageID != 0 {
		if err := bot.DeleteChatMessage(ctx, b, row.ToUser, row.MessageID); err != nil {
			log.WithError(err).WithField("confession_id", confessionID).Debug("cant retract delivered message")
		}
	}
	h.audit(ctx, user.ID, "conf_delete", fmt.Sprintf("confession=%d", confessionID))
	reply(b, user.ID, i18n.Get("Done.", lang))
	return false, nil
}

func (h *Admin) cmdPromoCreate(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	args := strings.Fields(m.CommandArguments())
	if len(args) < 3 {
		reply(b, user.ID, "/promo_create <code|-> <activations> <vip_days> [expires YYYY-MM-DD]")
		return false, nil
	}
	code := args[0]
	if code == "-" {
		code = strings.ToUpper(strings.ReplaceAll(uuid.NewRandom().String(), "-", "")[:8])
	}
	activations, err1 := strconv.Atoi(args[1])
	vipDays, err2 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil || activations < 1 || vipDays < 1 {
		reply(b, user.ID, "/promo_create <code|-> <activations> <vip_days> [expires YYYY-MM-DD]")
		return false, nil
	}
	promo := &db.PromoCode{
		Code:            code,
		Activations:     activations,
		ActivationsLeft: activations,
		VIPDays:         vipDays,
		CreatedBy:       user.ID,
	}
	if len(args) > 3 {
		expires, err := time.ParseInLocation("2006-01-02", args[3], time.Local)
		if err != nil {
			reply(b, user.ID, i18n.Get("Bad expiry date, use YYYY-MM-DD.", lang))
			return false, nil
		}
		promo.ExpiresAt.String = db.FormatTime(expires)
		promo.ExpiresAt.Valid = true
	}
	if err := h.s.GetDB().CreatePromoCode(ctx, promo); err != nil {
		return false, errors.WithMessage(err, "create promo")
	}
	h.audit(ctx, user.ID, "promo_create", fmt.Sprintf("code=%s activations=%d days=%d", code, activations, vipDays))
	reply(b, user.ID, fmt.Sprintf(i18n.Get("Promo code created: %s", lang), strings.ToUpper(code)))
	return false, nil
}

func (h *Admin) cmdPromoDelete(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	code := strings.TrimSpace(m.CommandArguments())
	if err := h.s.GetDB().DeletePromoCode(ctx, code); err != nil {
		return false, errors.WithMessage(err, "delete promo")
	}
	h.audit(ctx, user.ID, "promo_delete", code)
	reply(h.s.GetBot(), user.ID, i18n.Get("Done.", lang))
	return false, nil
}

func (h *Admin) cmdPromoList(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	promos, err := h.s.GetDB().ListPromoCodes(ctx)
	if err != nil {
		return false, errors.WithMessage(err, "list promos")
	}
	if len(promos) == 0 {
		reply(h.s.GetBot(), user.ID, i18n.Get("No promo codes.", lang))
		return false, nil
	}
	var sb strings.Builder
	for _, promo := range promos {
		sb.WriteString(fmt.Sprintf("%s: %d/%d left, %d days\n",
			promo.Code, promo.ActivationsLeft, promo.Activations, promo.VIPDays))
	}
	reply(h.s.GetBot(), user.ID, sb.String())
	return false, nil
}

func (h *Admin) cmdPromoActivations(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	code := strings.TrimSpace(m.CommandArguments())
	if code == "" {
		reply(b, user.ID, "/promo_activations <code>")
		return false, nil
	}
	activations, err := h.s.GetDB().ListPromoActivations(ctx, code)
	if err != nil {
		return false, errors.WithMessage(err, "list activations")
	}
	if len(activations) == 0 {
		reply(b, user.ID, i18n.Get("No activations yet.", lang))
		return false, nil
	}
	var sb strings.Builder
	for _, a := range activations {
		sb.WriteString(fmt.Sprintf("%d at %s\n", a.UserID, a.ActivatedAt))
	}
	reply(b, user.ID, sb.String())
	return false, nil
}

func (h *Admin) cmdAchievementCreate(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	args := strings.SplitN(m.CommandArguments(), " ", 2)
	if len(args) < 2 {
		reply(b, user.ID, "/ach_create <name> <description>")
		return false, nil
	}
	if _, err := h.s.GetDB().CreateAchievement(ctx, args[0], args[1]); err != nil {
		return false, errors.WithMessage(err, "create achievement")
	}
	h.audit(ctx, user.ID, "ach_create", args[0])
	reply(b, user.ID, i18n.Get("Done.", lang))
	return false, nil
}

func (h *Admin) cmdAchievementAward(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	args := strings.Fields(m.CommandArguments())
	if len(args) != 2 {
		reply(b, user.ID, "/ach_award <user> <achievement>")
		return false, nil
	}
	targetID, err := h.resolveUser(ctx, args[0])
	if err != nil {
		reply(b, user.ID, i18n.Get("Unknown user.", lang))
		return false, nil
	}
	ach, err := h.s.GetDB().GetAchievementByName(ctx, args[1])
	if stderrors.Is(err, db.ErrNotFound) {
		reply(b, user.ID, i18n.Get("Unknown achievement.", lang))
		return false, nil
	}
	if err != nil {
		return false, errors.WithMessage(err, "get achievement")
	}
	awarded, err := h.s.GetDB().AwardAchievement(ctx, targetID, ach.ID)
	if err != nil {
		return false, errors.WithMessage(err, "award achievement")
	}
	if !awarded {
		reply(b, user.ID, i18n.Get("Already awarded.", lang))
		return false, nil
	}
	h.audit(ctx, user.ID, "ach_award", fmt.Sprintf("user=%d ach=%s", targetID, ach.Name))
	event.Bus.NQ(event.NewUserNotice(targetID,
		fmt.Sprintf(i18n.Get("Achievement unlocked: %s", lang), ach.Name)))
	reply(b, user.ID, i18n.Get("Done.", lang))
	return false, nil
}

func (h *Admin) cmdAchievementRevoke(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	args := strings.Fields(m.CommandArguments())
	if len(args) != 2 {
		reply(b, user.ID, "/ach_revoke <user> <achievement>")
		return false, nil
	}
	targetID, err := h.resolveUser(ctx, args[0])
	if err != nil {
		reply(b, user.ID, i18n.Get("Unknown user.", lang))
		return false, nil
	}
	ach, err := h.s.GetDB().GetAchievementByName(ctx, args[1])
	if stderrors.Is(err, db.ErrNotFound) {
		reply(b, user.ID, i18n.Get("Unknown achievement.", lang))
		return false, nil
	}
	if err != nil {
		return false, errors.WithMessage(err, "get achievement")
	}
	if err := h.s.GetDB().RevokeAchievement(ctx, targetID, ach.ID); err != nil {
		return false, errors.WithMessage(err, "revoke achievement")
	}
	h.audit(ctx, user.ID, "ach_revoke", fmt.Sprintf("user=%d ach=%s", targetID, ach.Name))
	reply(b, user.ID, i18n.Get("Done.", lang))
	return false, nil
}

func (h *Admin) cmdAchievementDelete(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	name := strings.TrimSpace(m.CommandArguments())
	ach, err := h.s.GetDB().GetAchievementByName(ctx, name)
	if stderrors.Is(err, db.ErrNotFound) {
		reply(b, user.ID, i18n.Get("Unknown achievement.", lang))
		return false, nil
	}
	if err != nil {
		return false, errors.WithMessage(err, "get achievement")
	}
	if err := h.s.GetDB().DeleteAchievement(ctx, ach.ID); err != nil {
		return false, errors.WithMessage(err, "delete achievement")
	}
	h.audit(ctx, user.ID, "ach_delete", ach.Name)
	reply(b, user.ID, i18n.Get("Done.", lang))
	return false, nil
}

func (h *Admin) cmdAchievementList(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	achievements, err := h.s.GetDB().ListAchievements(ctx)
	if err != nil {
		return false, errors.WithMessage(err, "list achievements")
	}
	if len(achievements) == 0 {
		reply(h.s.GetBot(), user.ID, i18n.Get("No achievements defined.", lang))
		return false, nil
	}
	var sb strings.Builder
	for _, ach := range achievements {
		sb.WriteString(fmt.Sprintf("%s: %s\n", ach.Name, ach.Description))
	}
	reply(h.s.GetBot(), user.ID, sb.String())
	return false, nil
}

func (h *Admin) cmdMaintenanceOn(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	client := h.s.GetDB()
	reason, until := splitMaintenanceArgs(m.CommandArguments())
	if err := client.SetSetting(ctx, db.KeyMaintenanceEnabled, "1"); err != nil {
		return false, errors.WithMessage(err, "enable maintenance")
	}
	if err := client.SetSetting(ctx, db.KeyMaintenanceReason, reason); err != nil {
		return false, errors.WithMessage(err, "set maintenance reason")
	}
	if err := client.SetSetting(ctx, db.KeyMaintenanceUntil, until); err != nil {
		return false, errors.WithMessage(err, "set maintenance until")
	}
	h.audit(ctx, user.ID, "maintenance_on", fmt.Sprintf("reason=%q until=%q", reason, until))
	event.Bus.NQ(event.NewMaintenanceNotice(true, reason, until))
	reply(h.s.GetBot(), user.ID, i18n.Get("Maintenance mode enabled.", lang))
	return false, nil
}

func (h *Admin) cmdMaintenanceOff(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	client := h.s.GetDB()
	if err := client.SetSetting(ctx, db.KeyMaintenanceEnabled, "0"); err != nil {
		return false, errors.WithMessage(err, "disable maintenance")
	}
	if err := client.SetSetting(ctx, db.KeyMaintenanceReason, ""); err != nil {
		return false, errors.WithMessage(err, "clear maintenance reason")
	}
	if err := client.SetSetting(ctx, db.KeyMaintenanceUntil, ""); err != nil {
		return false, errors.WithMessage(err, "clear maintenance until")
	}
	h.audit(ctx, user.ID, "maintenance_off", "")
	event.Bus.NQ(event.NewMaintenanceNotice(false, "", ""))
	reply(h.s.GetBot(), user.ID, i18n.Get("Maintenance mode disabled.", lang))
	return false, nil
}

// splitMaintenanceArgs separates "/maintenance_on <reason> | <until>". Both
// halves are free text and either may be empty.
func splitMaintenanceArgs(raw string) (reason, until string) {
	parts := strings.SplitN(raw, "|", 2)
	reason = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		until = strings.TrimSpace(parts[1])
	}
	return reason, until
}

func (h *Admin) cmdWhoisToggle(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	return h.toggleSetting(ctx, user, lang, db.KeyWhoisEnabled, "whois_toggle")
}

func (h *Admin) cmdBattleToggle(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	return h.toggleSetting(ctx, user, lang, db.KeyBattleEnabled, "battle_toggle")
}

func (h *Admin) toggleSetting(ctx context.Context, user *api.User, lang, key, action string) (bool, error) {
	client := h.s.GetDB()
	current, err := client.GetSetting(ctx, key)
	if err != nil {
		return false, errors.WithMessage(err, "get toggle")
	}
	next := "1"
	if current == "1" {
		next = "0"
	}
	if err := client.SetSetting(ctx, key, next); err != nil {
		return false, errors.WithMessage(err, "set toggle")
	}
	h.audit(ctx, user.ID, action, next)
	state := i18n.Get("enabled", lang)
	if next == "0" {
		state = i18n.Get("disabled", lang)
	}
	reply(h.s.GetBot(), user.ID, fmt.Sprintf(i18n.Get("Now %s.", lang), state))
	return false, nil
}

func (h *Admin) cmdBattleClear(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	if err := h.s.GetDB().ClearBattleParticipants(ctx); err != nil {
		return false, errors.WithMessage(err, "clear battle roster")
	}
	h.audit(ctx, user.ID, "battle_clear", "")
	reply(h.s.GetBot(), user.ID, i18n.Get("Battle roster cleared.", lang))
	return false, nil
}

func (h *Admin) cmdBroadcast(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	text := strings.TrimSpace(m.CommandArguments())
	if text == "" {
		reply(b, user.ID, "/broadcast <text>")
		return false, nil
	}
	audience, err := h.s.GetDB().ListActiveUserIDs(ctx)
	if err != nil {
		return false, errors.WithMessage(err, "list audience")
	}
	result := h.broadcaster.Send(ctx, audience, text)
	h.audit(ctx, user.ID, "broadcast", fmt.Sprintf("sent=%d failed=%d", result.Sent, result.Failed))
	reply(b, user.ID, fmt.Sprintf(i18n.Get("Broadcast done: %d delivered, %d failed.", lang), result.Sent, result.Failed))
	return false, nil
}

func (h *Admin) cmdCleanup(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	client := h.s.GetDB()
	confessions, err := client.PurgeConfessionsOlderThan(ctx, 3)
	if err != nil {
		return false, errors.WithMessage(err, "purge confessions")
	}
	reports, err := client.PurgeReportsOlderThan(ctx, 30)
	if err != nil {
		return false, errors.WithMessage(err, "purge reports")
	}
	h.audit(ctx, user.ID, "cleanup", fmt.Sprintf("confessions=%d reports=%d", confessions, reports))
	reply(h.s.GetBot(), user.ID,
		fmt.Sprintf(i18n.Get("Purged %d confessions and %d reports.", lang), confessions, reports))
	return false, nil
}

func (h *Admin) cmdLogs(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	limit := 20
	if raw := strings.TrimSpace(m.CommandArguments()); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	entries, err := h.s.GetDB().ListAdminLogs(ctx, limit)
	if err != nil {
		return false, errors.WithMessage(err, "list admin logs")
	}
	if len(entries) == 0 {
		reply(h.s.GetBot(), user.ID, i18n.Get("No admin actions logged.", lang))
		return false, nil
	}
	var sb strings.Builder
	for _, entry := range entries {
		sb.WriteString(fmt.Sprintf("%s %d %s", entry.CreatedAt, entry.AdminID, entry.Action))
		if entry.Details != "" {
			sb.WriteString(" " + entry.Details)
		}
		sb.WriteString("\n")
	}
	reply(h.s.GetBot(), user.ID, sb.String())
	return false, nil
}

func (h *Admin) cmdRoleSet(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	args := strings.Fields(m.CommandArguments())
	if len(args) != 2 {
		reply(b, user.ID, "/role_set <user> <intern|moderator|admin>")
		return false, nil
	}
	targetID, err := h.resolveUser(ctx, args[0])
	if err != nil {
		reply(b, user.ID, i18n.Get("Unknown user.", lang))
		return false, nil
	}
	role, ok := entitlement.ParseRole(args[1])
	if !ok {
		reply(b, user.ID, "/role_set <user> <intern|moderator|admin>")
		return false, nil
	}
	err = h.entitlements.GrantRole(ctx, user.ID, targetID, role)
	switch {
	case stderrors.Is(err, apperrors.ErrPolicyViolation):
		reply(b, user.ID, i18n.Get("This role cannot be granted.", lang))
		return false, nil
	case stderrors.Is(err, apperrors.ErrUnauthorized):
		return true, nil
	case err != nil:
		return false, errors.WithMessage(err, "grant role")
	}
	h.audit(ctx, user.ID, "role_set", fmt.Sprintf("user=%d role=%s", targetID, role))
	reply(b, user.ID, i18n.Get("Done.", lang))
	return false, nil
}

func (h *Admin) cmdRoleRemove(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	b := h.s.GetBot()
	targetID, err := h.resolveUser(ctx, strings.TrimSpace(m.CommandArguments()))
	if err != nil {
		reply(b, user.ID, i18n.Get("Unknown user.", lang))
		return false, nil
	}
	err = h.entitlements.RevokeRole(ctx, user.ID, targetID)
	switch {
	case stderrors.Is(err, apperrors.ErrPolicyViolation):
		reply(b, user.ID, i18n.Get("Configured owners cannot be demoted.", lang))
		return false, nil
	case err != nil:
		return false, errors.WithMessage(err, "revoke role")
	}
	h.audit(ctx, user.ID, "role_remove", fmt.Sprintf("user=%d", targetID))
	reply(b, user.ID, i18n.Get("Done.", lang))
	return false, nil
}

func (h *Admin) cmdRoles(ctx context.Context, m *api.Message, user *api.User, lang string) (bool, error) {
	roles, err := h.s.GetDB().ListRoles(ctx)
	if err != nil {
		return false, errors.WithMessage(err, "list roles")
	}
	if len(roles) == 0 {
		reply(h.s.GetBot(), user.ID, i18n.Get("No roles granted.", lang))
		return false, nil
	}
	var sb strings.Builder
	for _, role := range roles {
		sb.WriteString(fmt.Sprintf("%d: %s (granted by %d)\n", role.UserID, role.Role, role.GrantedBy))
	}
	reply(h.s.GetBot(), user.ID, sb.String())
	return false, nil
}

// resolveUser accepts a numeric id or an @username.
func (h *Admin) resolveUser(ctx context.Context, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, apperrors.ErrNotFound
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}
	row, err := h.s.GetDB().GetUserByUsername(ctx, strings.TrimPrefix(ref, "@"))
	if err != nil {
		return 0, apperrors.ErrNotFound
	}
	return row.ID, nil
}

// audit writes the action to both the structured audit log and the durable
// admin log table.
func (h *Admin) audit(ctx context.Context, adminID int64, action, details string) {
	if observability.Audit != nil {
		observability.Audit.Info("admin action",
			zap.Int64("admin_id", adminID),
			zap.String("action", action),
			zap.String("details", details),
		)
	}
	if err := h.s.GetDB().AddAdminLog(ctx, &db.AdminLog{
		AdminID: adminID,
		Action:  action,
		Details: details,
	}); err != nil {
		log.WithError(err).Error("cant write admin log")
	}
}
