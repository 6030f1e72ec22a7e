package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/yourorg/stockcast/internal/bootstrap"
	"github.com/yourorg/stockcast/internal/domain"
	"github.com/yourorg/stockcast/internal/gateway"
	"github.com/yourorg/stockcast/internal/service"
)

type cli struct {
	rt  *bootstrap.Runtime
	out io.Writer
}

func (c *cli) handleAuth(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: stockcast auth <register|login|logout|status>")
		return errUsage
	}

	switch args[0] {
	case "register":
		return c.register(ctx, args[1:])
	case "login":
		return c.login(ctx, args[1:])
	case "logout":
		return c.logout(ctx)
	case "status":
		return c.status()
	default:
		fmt.Fprintf(c.out, "unknown auth command: %s\n", args[0])
		return errUsage
	}
}

func (c *cli) handleUpload(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: stockcast upload <inventory|sales> -file <path>")
		return errUsage
	}

	kind := domain.DatasetKind(args[0])
	if kind != domain.DatasetInventory && kind != domain.DatasetSales {
		fmt.Fprintf(c.out, "unknown upload command: %s\n", args[0])
		return errUsage
	}
	return c.upload(ctx, kind, args[1:])
}

func (c *cli) handlePredict(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: stockcast predict <generate|show>")
		return errUsage
	}

	switch args[0] {
	case "generate":
		return c.generate(ctx)
	case "show":
		return c.showPredictions(ctx, args[1:])
	default:
		fmt.Fprintf(c.out, "unknown predict command: %s\n", args[0])
		return errUsage
	}
}

func (c *cli) handleItem(ctx context.Context, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: stockcast item <add|update|delete>")
		return errUsage
	}

	switch args[0] {
	case "add":
		return c.addItem(ctx, args[1:])
	case "update":
		return c.updateItem(ctx, args[1:])
	case "delete":
		return c.deleteItem(ctx, args[1:])
	default:
		fmt.Fprintf(c.out, "unknown item command: %s\n", args[0])
		return errUsage
	}
}

// Auth commands
func credentialFlags(name string, args []string) (domain.Credentials, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	storeID := fs.String("store", "", "store ID")
	password := fs.String("password", "", "password (or STOCKCAST_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return domain.Credentials{}, errUsage
	}

	creds := domain.Credentials{StoreID: *storeID, Password: *password}
	if creds.Password == "" {
		creds.Password = os.Getenv("STOCKCAST_PASSWORD")
	}
	if creds.StoreID == "" || creds.Password == "" {
		fmt.Fprintln(os.Stderr, "Error: store and password are required")
		fs.PrintDefaults()
		return domain.Credentials{}, errUsage
	}
	return creds, nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	creds, err := credentialFlags("register", args)
	if err != nil {
		return err
	}
	if err := c.rt.Session.Register(ctx, creds); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ Store registered: %s (run 'stockcast auth login' to sign in)\n", creds.StoreID)
	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	creds, err := credentialFlags("login", args)
	if err != nil {
		return err
	}
	if err := c.rt.Session.Login(ctx, creds); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ Logged in as: %s\n", creds.StoreID)
	return nil
}

func (c *cli) logout(ctx context.Context) error {
	if err := c.rt.Session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "✓ Logged out")
	return nil
}

func (c *cli) status() error {
	snap := c.rt.Session.Snapshot()
	if !snap.Authenticated() {
		fmt.Fprintln(c.out, "Not logged in")
		return nil
	}
	fmt.Fprintf(c.out, "✓ Logged in as: %s\n", snap.StoreID)
	return nil
}

// Dataset and forecast commands
func (c *cli) upload(ctx context.Context, kind domain.DatasetKind, args []string) error {
	fs := flag.NewFlagSet("upload "+string(kind), flag.ContinueOnError)
	path := fs.String("file", "", "CSV file to upload")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *path == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required")
		fs.PrintDefaults()
		return errUsage
	}
	if err := c.requireSession(); err != nil {
		return err
	}

	f, err := os.Open(*path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", *path, err)
	}
	defer f.Close()

	name := filepath.Base(*path)
	if kind == domain.DatasetSales {
		err = c.rt.Forecast.UploadSales(ctx, name, f)
	} else {
		err = c.rt.Forecast.UploadInventory(ctx, name, f)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ Uploaded %s data from %s\n", kind, name)
	return nil
}

func (c *cli) generate(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if _, err := c.rt.Forecast.Generate(ctx); err != nil {
		if errors.Is(err, service.ErrDebounced) {
			return fmt.Errorf("predictions were generated moments ago: %w", err)
		}
		return err
	}
	fmt.Fprintln(c.out, "✓ Predictions generated")
	return nil
}

func (c *cli) showPredictions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("predict show", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print predictions as JSON")
	tolerance := fs.String("tolerance", "0", "absolute difference treated as balanced for rows the backend left unlabelled")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	tol, err := decimal.NewFromString(*tolerance)
	if err != nil {
		return fmt.Errorf("invalid -tolerance: %w", err)
	}
	if err := c.requireSession(); err != nil {
		return err
	}

	body, err := bootstrap.Read(ctx, c.rt, "get_predictions", c.rt.Forecast.Predictions)
	if err != nil {
		return err
	}
	preds, err := parsePredictions(body)
	if err != nil {
		return err
	}
	if preds == nil {
		// backend served an HTML page
		_, err := c.out.Write(body)
		return err
	}

	// backend values win; only missing fields are filled in
	for i := range preds {
		if !preds[i].Difference.Valid {
			preds[i].Difference = decimal.NewNullDecimal(preds[i].ComputedDifference())
		}
		if preds[i].Status == "" {
			preds[i].Status = string(preds[i].Classify(tol))
		}
	}

	if *asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(preds)
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tFROM\tTO\tPREDICTED\tSTOCK\tDIFF\tSTATUS")
	for _, p := range preds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			p.ItemID, p.StartDate, p.EndDate, p.PredictedQuantity.String(), p.CurrentStock, p.Difference.Decimal.String(), p.Status)
	}
	return w.Flush()
}

func (c *cli) transfers(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	body, err := c.rt.Forecast.TransferSuggestions(ctx)
	if err != nil {
		return err
	}
	_, err = c.out.Write(body)
	return err
}

// Inventory item commands
func (c *cli) addItem(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("item add", flag.ContinueOnError)
	id := fs.String("id", "", "item ID")
	product := fs.String("product", "", "product name")
	stock := fs.Int("stock", 0, "stock on hand")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := c.requireSession(); err != nil {
		return err
	}

	item := domain.InventoryItem{ItemID: *id, Product: *product, Stock: *stock, StoreID: c.rt.Session.StoreID()}
	if err := c.rt.Gateway.AddInventoryItem(ctx, item); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ Added item %s\n", item.ItemID)
	return nil
}

func (c *cli) updateItem(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("item update", flag.ContinueOnError)
	id := fs.String("id", "", "item ID")
	product := fs.String("product", "", "new product name")
	stock := fs.Int("stock", 0, "new stock on hand")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	// only flags given on the command line are sent
	var patch domain.InventoryPatch
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "product":
			patch.Product = product
		case "stock":
			patch.Stock = stock
		}
	})
	if err := c.requireSession(); err != nil {
		return err
	}

	if err := c.rt.Gateway.UpdateInventoryItem(ctx, *id, patch); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ Updated item %s\n", *id)
	return nil
}

func (c *cli) deleteItem(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("item delete", flag.ContinueOnError)
	id := fs.String("id", "", "item ID")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *id == "" {
		fmt.Fprintln(os.Stderr, "Error: -id is required")
		return errUsage
	}
	if err := c.requireSession(); err != nil {
		return err
	}

	if err := c.rt.Gateway.DeleteInventoryItem(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ Deleted item %s\n", *id)
	return nil
}

// Helper functions
func (c *cli) requireSession() error {
	if !c.rt.Session.IsAuthenticated() {
		return errors.New("not logged in; run 'stockcast auth login' first")
	}
	return nil
}

func parsePredictions(body []byte) ([]domain.Prediction, error) {
	preds, ok, err := gateway.ParsePredictions(body)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if preds == nil {
		preds = []domain.Prediction{}
	}
	return preds, nil
}
