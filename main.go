package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/AMOryC91/anonym/internal/bot"
	"github.com/AMOryC91/anonym/internal/broadcast"
	"github.com/AMOryC91/anonym/internal/config"
	"github.com/AMOryC91/anonym/internal/confession"
	"github.com/AMOryC91/anonym/internal/db"
	"github.com/AMOryC91/anonym/internal/db/sqlite"
	"github.com/AMOryC91/anonym/internal/entitlement"
	"github.com/AMOryC91/anonym/internal/event"
	"github.com/AMOryC91/anonym/internal/handlers"
	"github.com/AMOryC91/anonym/internal/i18n"
	"github.com/AMOryC91/anonym/internal/infra"
	"github.com/AMOryC91/anonym/internal/moderation"
	"github.com/AMOryC91/anonym/internal/observability"
	"github.com/AMOryC91/anonym/internal/session"
	"github.com/AMOryC91/anonym/internal/sweeper"
	"github.com/AMOryC91/anonym/internal/whois"
)

func main() {
	cfg := config.Get()
	log.SetFormatter(&config.AnFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	recoverable(func() {
		ctx, cancelFunc := context.WithCancel(context.Background())
		defer cancelFunc()

		if err := observability.Init(ctx, cfg.MetricsAddr); err != nil {
			log.WithError(err).Errorln("cant initialize observability")
		}

		client, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(), "anonym.db")
		if err != nil {
			log.WithError(err).Fatalln("cant open database")
		}
		defer client.Close()

		botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
		if err != nil {
			log.WithError(err).Errorln("cant initialize bot api")
			time.Sleep(1 * time.Second)
			log.Fatalln("exiting")
		}
		if log.Level(cfg.LogLevel) == log.TraceLevel {
			botAPI.Debug = true
		}
		defer botAPI.StopReceivingUpdates()

		service := bot.NewService(botAPI, client)
		entitlements := entitlement.NewService(client, cfg.Owners)
		sessions := session.NewStore(cfg.Confession.SessionTTL)
		blacklist := moderation.NewBlacklist(client)
		warner := moderation.NewWarner(client, entitlements)
		reports := moderation.NewReports(client, entitlements)
		courier := handlers.NewCourier(service, cfg.DefaultLanguage)
		confessions := confession.NewService(client, blacklist, entitlements, sessions, courier,
			cfg.Confession.MaxTextLength, cfg.Confession.EditWindow)
		whoisSvc := whois.NewService(client)
		broadcaster := broadcast.New(textSender{botAPI}, cfg.Broadcast.Concurrency,
			cfg.Broadcast.MaxRetries, cfg.Broadcast.Delay)

		seedAchievements(ctx, client)
		subscribeNotices(ctx, service, broadcaster, cfg.DefaultLanguage)
		defer event.RunWorker()()

		jobs := sweeper.New(client, sessions, func(userID int64, daysLeft int) {
			text := fmt.Sprintf(i18n.Get("Your VIP expires in %d days.", cfg.DefaultLanguage), daysLeft)
			event.Bus.NQ(event.NewUserNotice(userID, text))
		}, cfg.Confession.RetentionDays)
		if err := jobs.Start(ctx); err != nil {
			log.WithError(err).Errorln("cant start sweeper")
		}
		defer jobs.Stop()

		bot.RegisterUpdateHandler("admin", handlers.NewAdmin(service, entitlements, warner, blacklist, reports, confessions, broadcaster))
		bot.RegisterUpdateHandler("user", handlers.NewUser(service, entitlements, confessions, whoisSvc))
		bot.RegisterUpdateHandler("confession", handlers.NewConfession(service, confessions, sessions, reports))
		bot.RegisterUpdateHandler("whois", handlers.NewWhois(service, whoisSvc))
		bot.RegisterUpdateHandler("battle", handlers.NewBattle(service))

		updateConfig := api.NewUpdate(0)
		updateConfig.Timeout = 60
		updateProcessor := bot.NewUpdateProcessor(service, gateAdapter{entitlements},
			[]string{"admin", "user", "confession", "whois", "battle"})

		updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

		for {
			select {
			case err := <-errorChan:
				log.WithError(err).Fatalln("bot api get updates error")
			case update := <-updateChan:
				if err := updateProcessor.Process(ctx, &update); err != nil {
					log.WithError(err).Errorln("cant process update")
				}
			case <-ctx.Done():
				log.WithError(ctx.Err()).Errorln("no more updates")
				return
			}
		}
	})
	os.Exit(0)
}

// textSender adapts the bot api to the broadcast sender contract.
type textSender struct {
	bot *api.BotAPI
}

func (t textSender) SendText(ctx context.Context, userID int64, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		_, err := t.bot.Send(api.NewMessage(userID, text))
		return err
	}
}

// gateAdapter narrows the entitlement engine to what the update gates need.
type gateAdapter struct {
	svc *entitlement.Service
}

func (g gateAdapter) IsBanned(ctx context.Context, userID int64) (bool, error) {
	return g.svc.IsBanned(ctx, userID)
}

func (g gateAdapter) IsModerator(ctx context.Context, userID int64) (bool, error) {
	return g.svc.HasRole(ctx, userID, entitlement.RoleModerator)
}

// subscribeNotices wires the event bus consumers: single-user pings and
// maintenance announcements.
func subscribeNotices(ctx context.Context, service bot.Service, broadcaster *broadcast.Broadcaster, lang string) {
	event.Subscribe(event.TypeUserNotice, func(e event.Queueable) {
		notice, ok := e.(*event.UserNotice)
		if !ok {
			e.Drop()
			return
		}
		if _, err := service.GetBot().Send(api.NewMessage(notice.UserID, notice.Text)); err != nil {
			log.WithError(err).WithField("user_id", notice.UserID).Debug("cant deliver notice")
		}
		notice.Process()
	})
	event.Subscribe(event.TypeMaintenance, func(e event.Queueable) {
		notice, ok := e.(*event.MaintenanceNotice)
		if !ok {
			e.Drop()
			return
		}
		defer notice.Process()
		audience, err := service.GetDB().ListActiveUserIDs(ctx)
		if err != nil {
			log.WithError(err).Errorln("cant list maintenance audience")
			return
		}
		text := i18n.Get("The bot is back! Thanks for waiting.", lang)
		if notice.Enabled {
			text = i18n.Get("The bot is going into maintenance, see you soon.", lang)
			if notice.Reason != "" {
				text += "\n" + notice.Reason
			}
			if notice.Until != "" {
				text += "\n" + fmt.Sprintf(i18n.Get("Expected back: %s", lang), notice.Until)
			}
		}
		broadcaster.Send(ctx, audience, text)
	})
}

// seedAchievements makes sure the received-count milestones exist.
func seedAchievements(ctx context.Context, client db.Client) {
	for _, milestone := range []int{10, 20, 50, 100, 500} {
		name := fmt.Sprintf("received_%d", milestone)
		if _, err := client.GetAchievementByName(ctx, name); err == nil {
			continue
		}
		description := fmt.Sprintf("Received %d confessions", milestone)
		if _, err := client.CreateAchievement(ctx, name, description); err != nil {
			log.WithError(err).WithField("achievement", name).Warn("cant seed achievement")
		}
	}
}

func recoverable(f func()) {
	defer func() {
		if err := recover(); err != nil {
			log.Errorf(`panic with message: %s, %s\n`, err, identifyPanic())
			time.Sleep(5 * time.Second)
			go recoverable(f)
		}
	}()
	log.Debug("going recoverable")
	f()
}

func identifyPanic() string {
	var name, file string
	var line int
	var pc [16]uintptr

	n := runtime.Callers(3, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line = fn.FileLine(pc)
		name = fn.Name()
		if !strings.HasPrefix(name, "runtime.") {
			break
		}
	}

	switch {
	case name != "":
		return fmt.Sprintf("%v:%v", name, line)
	case file != "":
		return fmt.Sprintf("pc %v:%v", file, line)
	}

	return fmt.Sprintf("pc:%x", pc)
}
