package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"PointsCalc/internal/client"
)

const usage = `usage: pointsctl [-addr URL] <command> [args]

commands:
  view                              show tabs and ranked items
  use <category>                    switch the active category
  new <category>                    create an empty category
  add <category> <name> <points> <price>
  edit <category> <item-id> <name> <points> <price>
  rm <category> <item-id>           delete an item
  rm-category <category>            delete a category and its items
  reset                             delete every category
`

func main() {
	addr := flag.String("addr", getenv("POINTSD_ADDR", "http://localhost:8080"), "pointsd base URL")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx, client.New(*addr), flag.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "pointsctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "view":
		v, err := c.View(ctx)
		if err != nil {
			return err
		}
		printView(out, v)
	case "use":
		if len(rest) != 1 {
			return fmt.Errorf("use: want <category>")
		}
		v, err := c.Select(ctx, rest[0])
		if err != nil {
			return err
		}
		printView(out, v)
	case "new":
		if len(rest) != 1 {
			return fmt.Errorf("new: want <category>")
		}
		m, err := c.CreateCategory(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created %s\n", m.Category)
		warn(out, m.Warning)
	case "add":
		if len(rest) != 4 {
			return fmt.Errorf("add: want <category> <name> <points> <price>")
		}
		m, err := c.AddItem(ctx, rest[0], rest[1], rest[2], rest[3])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "added %s to %s\n", m.Item.ID, m.Category)
		warn(out, m.Warning)
	case "edit":
		if len(rest) != 5 {
			return fmt.Errorf("edit: want <category> <item-id> <name> <points> <price>")
		}
		m, err := c.UpdateItem(ctx, rest[0], rest[1], rest[2], rest[3], rest[4])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "updated %s in %s\n", m.Item.ID, m.Category)
		warn(out, m.Warning)
	case "rm":
		if len(rest) != 2 {
			return fmt.Errorf("rm: want <category> <item-id>")
		}
		m, err := c.DeleteItem(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", rest[1])
		warn(out, m.Warning)
	case "rm-category":
		if len(rest) != 1 {
			return fmt.Errorf("rm-category: want <category>")
		}
		m, err := c.DeleteCategory(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted category %s\n", rest[0])
		warn(out, m.Warning)
	case "reset":
		m, err := c.Reset(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "catalog cleared")
		warn(out, m.Warning)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	return nil
}

func printView(out io.Writer, v client.View) {
	tabs := make([]string, 0, len(v.Tabs))
	for _, t := range v.Tabs {
		if t.Active {
			tabs = append(tabs, "["+t.Name+"]")
			continue
		}
		tabs = append(tabs, t.Name)
	}
	if len(tabs) > 0 {
		fmt.Fprintln(out, strings.Join(tabs, "  "))
	}

	if v.Empty != nil {
		fmt.Fprintf(out, "%s %s\n", v.Empty.Title, v.Empty.Message)
		return
	}
	for _, it := range v.Items {
		mark := " "
		if it.BestDeal {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %-24s %10g pts  %10s  %s/pt  %s\n",
			mark, it.Name, it.Points, it.PriceDisplay, it.ValueDisplay, it.ID)
	}
}

func warn(out io.Writer, w string) {
	if w != "" {
		fmt.Fprintln(out, "warning:", w)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
