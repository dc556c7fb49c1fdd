package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"pivotbot/control"
	"pivotbot/exchange"
	"pivotbot/indicator"
	"pivotbot/model"
	"pivotbot/notification"
	"pivotbot/order"
	"pivotbot/strategy"
	"pivotbot/telemetry"
	"pivotbot/tools/log"
)

const exchangeName = "Binance"

var recordNames = map[string]string{
	"bmt":   "BtcMonthlyTrading",
	"adt":   "AltDailyTrading",
	"abd":   "AltBtcDayTrading",
	"bfdt":  "BtcFutureDailyTrading",
	"bfht":  "BtcFutureHourlyTrading",
	"bfwht": "BtcFutureWeeklyHourTrading",
}

func main() {
	app := &cli.App{
		Name:     "pivotbot",
		HelpName: "pivotbot",
		Usage:    "Pivot trading daemon for Binance spot and USD-M futures",
		Commands: []*cli.Command{
			{
				Name:     "run",
				HelpName: "run",
				Usage:    "Run one trading strategy until stopped",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "strategy",
						Aliases:  []string{"s"},
						Usage:    "bmt, adt, abd, bfdt, bfht or bfwht",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "keys",
						Aliases: []string{"k"},
						Usage:   "credentials file, line 1 key, line 2 secret",
						Value:   "api/keys.txt",
					},
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "telemetry root directory",
						Value:   "data",
					},
					&cli.StringFlag{
						Name:  "kill-switch",
						Usage: "kill switch file, polled every second",
						Value: "data/kill_switch.txt",
					},
					&cli.StringFlag{
						Name:  "coin-data",
						Usage: "coin list CSV for the alt strategies",
						Value: "data/Binance/CoinData/coin_list.csv",
					},
					&cli.StringFlag{
						Name:  "log",
						Usage: "log root directory",
						Value: "log",
					},
					&cli.BoolFlag{
						Name:  "testnet",
						Usage: "route all calls to the exchange testnet",
					},
				},
				Action: runAction,
			},
			{
				Name:     "notify",
				HelpName: "notify",
				Usage:    "Run the Telegram notifier side process",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Telegram bot token",
						Required: true,
					},
					&cli.IntSliceFlag{
						Name:     "users",
						Usage:    "authorized Telegram user ids",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "kill-switch",
						Usage: "kill switch file shared with the trading daemon",
						Value: "data/kill_switch.txt",
					},
					&cli.StringFlag{
						Name:  "log",
						Usage: "log root directory of the trading daemon",
						Value: "log",
					},
					&cli.StringFlag{
						Name:  "log-name",
						Usage: "log name of the watched strategy",
						Value: "pivotbot",
					},
				},
				Action: notifyAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runAction(c *cli.Context) error {
	name := c.String("strategy")
	recordName, ok := recordNames[name]
	if !ok {
		return fmt.Errorf("unknown strategy %q", name)
	}

	if err := log.SetOutputFile(c.String("log"), name); err != nil {
		return err
	}

	key, secret, err := control.ReadCredentials(c.String("keys"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	strat, err := buildStrategy(ctx, c, name, recordName, key, secret)
	if err != nil {
		return err
	}

	kill := control.KillSwitch{Path: c.String("kill-switch")}
	go func() {
		<-kill.Watch(ctx)
		cancel()
	}()

	log.Infof("starting %s", name)
	strategy.NewRuntime(strat).Run(ctx)
	log.Infof("%s stopped", name)
	return nil
}

func buildStrategy(ctx context.Context, c *cli.Context, name, recordName,
	key, secret string) (strategy.Strategy, error) {

	dataDir := c.String("data")

	switch name {
	case "bmt", "adt", "abd":
		opts := []exchange.BinanceOption{exchange.WithBinanceCredentials(key, secret)}
		if c.Bool("testnet") {
			opts = append(opts, exchange.WithBinanceTestnet())
		}
		ex, err := exchange.NewBinance(ctx, opts...)
		if err != nil {
			return nil, err
		}
		spot := order.NewSpot(ex)
		pivots := indicator.NewPivots(ex)
		recorder := telemetry.NewRecorder(dataDir, exchangeName, recordName, false)

		switch name {
		case "bmt":
			return strategy.NewBTCMonthly(spot, pivots, recorder), nil
		case "adt":
			coins, coinPath := loadCoinList(c)
			return strategy.NewAltDaily(spot, pivots, coins, recorder, coinPath), nil
		default:
			coins, _ := loadCoinList(c)
			return strategy.NewAltBTCDay(spot, pivots, coins, recorder), nil
		}

	default:
		opts := []exchange.BinanceFutureOption{exchange.WithBinanceFutureCredentials(key, secret)}
		if c.Bool("testnet") {
			opts = append(opts, exchange.WithBinanceFutureTestnet())
		}
		broker, err := exchange.NewBinanceFuture(ctx, opts...)
		if err != nil {
			return nil, err
		}
		futures := order.NewFutures(broker)
		pivots := indicator.NewPivots(broker)
		recorder := telemetry.NewRecorder(dataDir, exchangeName, recordName, true)

		switch name {
		case "bfdt":
			return strategy.NewFutureDaily(futures, pivots, recorder), nil
		case "bfht":
			return strategy.NewFutureHourly(futures, pivots, recorder), nil
		default:
			return strategy.NewFutureWeekly(futures, pivots, recorder), nil
		}
	}
}

func loadCoinList(c *cli.Context) (control.CoinList, string) {
	path := c.String("coin-data")
	coins, err := control.ReadCoinList(path)
	if err != nil {
		log.Warnf("coin list %s: %v, using defaults", path, err)
		return control.DefaultCoinList(), path
	}
	return coins, path
}

func notifyAction(c *cli.Context) error {
	settings := model.Settings{
		Telegram: model.TelegramSettings{
			Enabled: true,
			Token:   c.String("token"),
			Users:   c.IntSlice("users"),
		},
	}
	kill := control.KillSwitch{Path: c.String("kill-switch")}

	bot, err := notification.NewTelegram(settings, kill, c.String("log"), c.String("log-name"))
	if err != nil {
		return err
	}
	bot.Start()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}
