// Command pursectl drives a running purseflow service over HTTP.
//
//	pursectl -addr http://127.0.0.1:9090 onboard -name "Jane Doe" -food 50
//	pursectl topup -card 6056781234567890 -value 15
//	pursectl buy -type 1 -card 6056781234567890 -merchant Bistro -value 20
//	pursectl list
//	pursectl extracts -card 6056781234567890
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alovak/purseflow/consumer/models"
	"github.com/alovak/purseflow/internal/cardgen"
	"github.com/alovak/purseflow/internal/consumerclient"
	"github.com/shopspring/decimal"
)

var (
	flagAddr    = flag.String("addr", "http://127.0.0.1:9090", "purseflow base URL")
	flagVerbose = flag.Bool("verbose", false, "print full card numbers (otherwise masked)")
	flagJSON    = flag.Bool("json", false, "print raw JSON")
)

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cli := consumerclient.New(*flagAddr, &http.Client{Timeout: 10 * time.Second})
	ctx := context.Background()
	args := flag.Args()[1:]

	switch flag.Arg(0) {
	case "onboard":
		onboard(ctx, cli, args)
	case "topup":
		topup(ctx, cli, args)
	case "buy":
		buy(ctx, cli, args)
	case "list":
		printConsumers(must1(cli.ListConsumers(ctx)))
	case "extracts":
		fs := flag.NewFlagSet("extracts", flag.ExitOnError)
		card := fs.Int64("card", 0, "card number (0 lists every extract)")
		must(fs.Parse(args))
		printExtracts(must1(cli.ListExtracts(ctx, *card)))
	default:
		fail("unknown command %q", flag.Arg(0))
	}
}

func onboard(ctx context.Context, cli *consumerclient.Client, args []string) {
	fs := flag.NewFlagSet("onboard", flag.ExitOnError)
	name := fs.String("name", "", "consumer name")
	document := fs.String("document", "", "document number")
	email := fs.String("email", "", "email")
	phone := fs.String("phone", "", "mobile phone")
	food := fs.String("food", "0", "initial food balance")
	fuel := fs.String("fuel", "0", "initial fuel balance")
	drugstore := fs.String("drugstore", "0", "initial drugstore balance")
	must(fs.Parse(args))

	consumerName := normalizeName(*name)
	if consumerName == "" {
		fail("-name is required")
	}

	created := must1(cli.CreateConsumer(ctx, models.Consumer{
		Profile: models.Profile{
			Name:           consumerName,
			DocumentNumber: strings.TrimSpace(*document),
			Email:          strings.TrimSpace(*email),
			MobilePhone:    strings.TrimSpace(*phone),
		},
		Card: models.Card{
			Food:      models.Purse{Balance: mustAmount(*food)},
			Fuel:      models.Purse{Balance: mustAmount(*fuel)},
			Drugstore: models.Purse{Balance: mustAmount(*drugstore)},
		},
	}))
	printConsumers([]models.Consumer{*created})
}

func topup(ctx context.Context, cli *consumerclient.Client, args []string) {
	fs := flag.NewFlagSet("topup", flag.ExitOnError)
	card := fs.Int64("card", 0, "card number")
	value := fs.String("value", "", "amount to add, negative to correct down")
	must(fs.Parse(args))
	if *card == 0 {
		fail("-card is required")
	}

	updated := must1(cli.SetCardBalance(ctx, *card, mustAmount(*value)))
	printConsumers([]models.Consumer{*updated})
}

func buy(ctx context.Context, cli *consumerclient.Client, args []string) {
	fs := flag.NewFlagSet("buy", flag.ExitOnError)
	category := fs.Int("type", 0, "establishment type: 1=food 2=drugstore 3=fuel")
	card := fs.Int64("card", 0, "card number")
	merchant := fs.String("merchant", "", "establishment name")
	product := fs.String("product", "", "product description")
	value := fs.String("value", "", "purchase amount")
	must(fs.Parse(args))
	if *card == 0 {
		fail("-card is required")
	}

	amount := mustAmount(*value)
	if !amount.IsPositive() {
		fail("-value must be positive")
	}

	extract := must1(cli.Buy(ctx, models.BuyRequest{
		Category:           models.Category(*category),
		MerchantName:       strings.TrimSpace(*merchant),
		CardNumber:         *card,
		ProductDescription: strings.TrimSpace(*product),
		Amount:             amount,
	}))
	printExtracts([]models.Extract{*extract})
}

func printConsumers(consumers []models.Consumer) {
	if *flagJSON {
		printJSON(consumers)
		return
	}
	for _, c := range consumers {
		fmt.Printf("%s  %s\n", c.ID, c.Name)
		for _, purse := range models.PurseTypes {
			p := c.Card.Purse(purse)
			fmt.Printf("  %-9s %s  %s\n", purse, cardNumber(p.Number), p.Balance.StringFixed(2))
		}
	}
}

func printExtracts(extracts []models.Extract) {
	if *flagJSON {
		printJSON(extracts)
		return
	}
	for _, e := range extracts {
		fmt.Printf("%s  %s  %s  %s  %s\n",
			e.DateBuy.Local().Format(time.RFC3339), cardNumber(e.CardNumber), e.Amount.StringFixed(2), e.MerchantName, e.ProductDescription)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	must(enc.Encode(v))
}

func cardNumber(n int64) string {
	if *flagVerbose {
		return fmt.Sprint(n)
	}
	return cardgen.MaskNumber(n)
}

// normalizeName collapses inner whitespace and trims the result.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func mustAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		fail("invalid amount %q", s)
	}
	return d
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: pursectl [flags] onboard|topup|buy|list|extracts [command flags]\n")
	flag.PrintDefaults()
}

func must(err error) {
	if err != nil {
		fail("%v", err)
	}
}
func must1[T any](v T, err error) T {
	if err != nil {
		fail("%v", err)
	}
	return v
}
func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
