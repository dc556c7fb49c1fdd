// Package notification pushes bot events to operators over Telegram.
package notification

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"pivotbot/control"
	"pivotbot/exchange"
	"pivotbot/model"
	"pivotbot/service"
	"pivotbot/tools/log"
)

const digestErrorLimit = 10

type telegram struct {
	settings    model.Settings
	client      *tb.Bot
	kill        control.KillSwitch
	logDir      string
	logName     string
	defaultMenu *tb.ReplyMarkup
	now         func() time.Time
}

type Option func(telegram *telegram)

// NewTelegram builds the chat notifier. Only the configured user ids
// pass the poller middleware; everyone else is dropped before the
// handlers run.
func NewTelegram(settings model.Settings, kill control.KillSwitch,
	logDir, logName string, options ...Option) (service.Telegram, error) {

	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: 10 * time.Second}
	userMiddleware := tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("no message, ", u)
			return false
		}
		for _, user := range settings.Telegram.Users {
			if int(u.Message.Sender.ID) == user {
				return true
			}
		}
		log.Error("invalid user, ", u.Message)
		return false
	})

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Telegram.Token,
		Poller:    userMiddleware,
	})
	if err != nil {
		return nil, err
	}

	var (
		helpBtn   = menu.Text("/help")
		digestBtn = menu.Text("/digest")
		stopBtn   = menu.Text("/kill_trading_bot")
		startBtn  = menu.Text("/turn_on_trading_bot")
	)

	err = client.SetCommands([]tb.Command{
		{Text: "/help", Description: "show available commands"},
		{Text: "/digest", Description: "summary of yesterday's log"},
		{Text: "/kill_trading_bot", Description: "engage the kill switch"},
		{Text: "/turn_on_trading_bot", Description: "release the kill switch"},
		{Text: "/kill_telegram_bot", Description: "stop this notifier"},
	})
	if err != nil {
		return nil, err
	}

	menu.Reply(
		menu.Row(helpBtn, digestBtn),
		menu.Row(startBtn, stopBtn),
	)

	bot := &telegram{
		settings:    settings,
		client:      client,
		kill:        kill,
		logDir:      logDir,
		logName:     logName,
		defaultMenu: menu,
		now:         time.Now,
	}
	for _, option := range options {
		option(bot)
	}

	client.Handle("/help", bot.HelpHandle)
	client.Handle("/digest", bot.DigestHandle)
	client.Handle("/kill_trading_bot", bot.KillTradingHandle)
	client.Handle("/turn_on_trading_bot", bot.TurnOnTradingHandle)
	client.Handle("/kill_telegram_bot", bot.KillTelegramHandle)

	return bot, nil
}

// Start runs the command loop and the daily digest in the background.
func (t *telegram) Start() {
	go t.client.Start()
	go t.digestLoop()
	for _, id := range t.settings.Telegram.Users {
		_, err := t.client.Send(&tb.User{ID: int64(id)}, "Bot initialized.", t.defaultMenu)
		if err != nil {
			log.Error(err)
		}
	}
}

func (t *telegram) Notify(text string) {
	for _, user := range t.settings.Telegram.Users {
		_, err := t.client.Send(&tb.User{ID: int64(user)}, text)
		if err != nil {
			log.Error(err)
		}
	}
}

// digestLoop sends the previous day's summary once per UTC day.
func (t *telegram) digestLoop() {
	prevDay := t.now().UTC().Format("2006-01-02")
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		day := t.now().UTC().Format("2006-01-02")
		if day == prevDay {
			continue
		}
		prevDay = day
		t.Notify(t.digest())
	}
}

// digest reads yesterday's log file: any error-level lines are
// forwarded (up to a cap), otherwise a heartbeat goes out.
func (t *telegram) digest() string {
	yesterday := t.now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	path := log.DailyFile(t.logDir, t.logName, yesterday)

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("No log for %s. Is the trading bot running?", yesterday)
		}
		return fmt.Sprintf("Cannot read log for %s: %v", yesterday, err)
	}
	defer file.Close()

	var errorLines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "level=error") {
			errorLines = append(errorLines, line)
			if len(errorLines) == digestErrorLimit {
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Sprintf("Cannot read log for %s: %v", yesterday, err)
	}

	if len(errorLines) == 0 {
		return fmt.Sprintf("All good on %s, no errors logged.", yesterday)
	}
	return fmt.Sprintf("🛑 %d error(s) on %s:\n%s",
		len(errorLines), yesterday, strings.Join(errorLines, "\n"))
}

func (t *telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		log.Error(err)
		t.OnError(err)
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("/%s - %s", command.Text, command.Description))
	}
	_, err = t.client.Send(m.Sender, strings.Join(lines, "\n"))
	if err != nil {
		log.Error(err)
	}
}

func (t *telegram) DigestHandle(m *tb.Message) {
	_, err := t.client.Send(m.Sender, t.digest())
	if err != nil {
		log.Error(err)
	}
}

func (t *telegram) KillTradingHandle(m *tb.Message) {
	if err := t.kill.Write(true); err != nil {
		log.Error(err)
		t.OnError(err)
		return
	}
	_, err := t.client.Send(m.Sender, "Kill switch engaged. Trading bot will stop.", t.defaultMenu)
	if err != nil {
		log.Error(err)
	}
}

func (t *telegram) TurnOnTradingHandle(m *tb.Message) {
	if err := t.kill.Write(false); err != nil {
		log.Error(err)
		t.OnError(err)
		return
	}
	_, err := t.client.Send(m.Sender, "Kill switch released. Trading bot may run.", t.defaultMenu)
	if err != nil {
		log.Error(err)
	}
}

func (t *telegram) KillTelegramHandle(m *tb.Message) {
	_, err := t.client.Send(m.Sender, "Telegram bot stopping.")
	if err != nil {
		log.Error(err)
	}
	t.client.Stop()
}

func (t *telegram) OnOrder(order model.Order) {
	title := ""
	switch order.Status {
	case model.OrderStatusTypeFilled:
		title = fmt.Sprintf("✅ ORDER FILLED - %s", order.Pair)
	case model.OrderStatusTypeNew:
		title = fmt.Sprintf("🆕 NEW ORDER - %s", order.Pair)
	case model.OrderStatusTypeCanceled, model.OrderStatusTypeRejected:
		title = fmt.Sprintf("❌ ORDER CANCELED / REJECTED - %s", order.Pair)
	}

	message := fmt.Sprintf("%s\n-----\n%s", title, order)
	t.Notify(message)
}

func (t *telegram) OnError(err error) {
	title := "🛑 ERROR"

	var orderError *exchange.OrderError
	if errors.As(err, &orderError) {
		message := fmt.Sprintf(`%s
-----
Pair: %s
Quantity: %.4f
-----
%s`, title, orderError.Pair, orderError.Quantity, orderError.Err)
		t.Notify(message)
		return
	}

	t.Notify(fmt.Sprintf("%s\n-----\n%s", title, err))
}
