package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs. The real App
// satisfies it; tests provide a lightweight stub.
type execIface interface {
	isLoggedIn(ctx context.Context) bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	Sync(ctx context.Context, force bool) error
	Conflicts(ctx context.Context) error
	List(ctx context.Context, what string) error
	Add(ctx context.Context, what string) error
	EditVehicle(ctx context.Context, id string) error
	Inspect(ctx context.Context, checklistID, vehicleID string) error
	Record(ctx context.Context, executionID, itemID, status, notes string) error
	Photo(ctx context.Context, executionID, itemID, path string) error
	Complete(ctx context.Context, executionID string) error
	Show(ctx context.Context, executionID string) error
}

const helpCommon = `Commands:
  list types|groups|vehicles|checklists|executions   (alias: l)
  add type|group|vehicle|checklist
  edit <vehicle-id>
  inspect <checklist-id> <vehicle-id>
  result <execution-id> <item-id> ok|defect|na [notes]
  photo <execution-id> <item-id> <file>
  complete <execution-id>
  show <execution-id>
  status, conflicts, exit`

// runREPL reads commands from scanner and dispatches them to a until EOF,
// "exit" or "quit". Handlers report their own errors; the loop ignores them.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("fleet%s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpCommon)
			if a.isLoggedIn(ctx) {
				printlnFn("  sync [--force], logout")
			} else {
				printlnFn("  register, login")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "status":
			_ = a.Status(ctx)

		case "sync":
			force := len(args) > 0 && (args[0] == "--force" || args[0] == "-f")
			_ = a.Sync(ctx, force)

		case "conflicts":
			_ = a.Conflicts(ctx)

		case "l", "list":
			if len(args) != 1 {
				printlnFn("Usage: list types|groups|vehicles|checklists|executions")
				continue
			}
			_ = a.List(ctx, args[0])

		case "add":
			if len(args) != 1 {
				printlnFn("Usage: add type|group|vehicle|checklist")
				continue
			}
			_ = a.Add(ctx, args[0])

		case "edit":
			if len(args) != 1 {
				printlnFn("Usage: edit <vehicle-id>")
				continue
			}
			_ = a.EditVehicle(ctx, args[0])

		case "inspect":
			if len(args) != 2 {
				printlnFn("Usage: inspect <checklist-id> <vehicle-id>")
				continue
			}
			_ = a.Inspect(ctx, args[0], args[1])

		case "result":
			if len(args) < 3 {
				printlnFn("Usage: result <execution-id> <item-id> ok|defect|na [notes]")
				continue
			}
			_ = a.Record(ctx, args[0], args[1], args[2], strings.Join(args[3:], " "))

		case "photo":
			if len(args) != 3 {
				printlnFn("Usage: photo <execution-id> <item-id> <file>")
				continue
			}
			_ = a.Photo(ctx, args[0], args[1], args[2])

		case "complete":
			if len(args) != 1 {
				printlnFn("Usage: complete <execution-id>")
				continue
			}
			_ = a.Complete(ctx, args[0])

		case "show":
			if len(args) != 1 {
				printlnFn("Usage: show <execution-id>")
				continue
			}
			_ = a.Show(ctx, args[0])

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
