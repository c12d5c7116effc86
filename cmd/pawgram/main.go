package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/celerix-dev/pawgram/pkg/schema"
	"github.com/celerix-dev/pawgram/pkg/sdk"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}

	client := sdk.FromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	command := strings.ToUpper(os.Args[1])
	args := os.Args[2:]

	switch command {
	case "REGISTER":
		if len(args) < 2 {
			log.Fatal("Usage: pawgram REGISTER <username> <password>")
		}
		if err := client.Register(ctx, args[0], args[1]); err != nil {
			log.Fatal(err)
		}
		fmt.Println("OK")

	case "LOGIN":
		if len(args) < 2 {
			log.Fatal("Usage: pawgram LOGIN <username> <password>")
		}
		resp, err := client.Login(ctx, args[0], args[1])
		if err != nil {
			log.Fatal(err)
		}
		// Printed alone so it can be captured: export PAWGRAM_TOKEN=$(pawgram LOGIN ...)
		fmt.Println(resp.Token)

	case "LOGOUT":
		all := len(args) > 0 && args[0] == "--all"
		if err := client.Logout(ctx, all); err != nil {
			log.Fatal(err)
		}
		fmt.Println("OK")

	case "FEED":
		posts, err := client.Posts(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(summarize(posts))

	case "MINE":
		posts, err := client.MyPosts(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(summarize(posts))

	case "USER":
		if len(args) < 1 {
			log.Fatal("Usage: pawgram USER <username>")
		}
		info, err := client.User(ctx, args[0])
		if err != nil {
			log.Fatal(err)
		}
		printJSON(map[string]any{"user": info.User, "posts": summarize(info.Posts)})

	case "POST":
		if len(args) < 1 {
			log.Fatal("Usage: pawgram POST <image-file> [caption]")
		}
		image, err := sdk.EncodeImageFile(args[0])
		if err != nil {
			log.Fatal(err)
		}
		post, err := client.CreatePost(ctx, schema.NewPost{Image: image, Caption: strings.Join(args[1:], " ")})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(post.ID)

	case "REACT":
		if len(args) < 2 {
			log.Fatal("Usage: pawgram REACT <postID> <reaction>")
		}
		post, err := client.React(ctx, args[0], args[1])
		if err != nil {
			log.Fatal(err)
		}
		printJSON(post.Reactions)

	case "DEL":
		if len(args) < 1 {
			log.Fatal("Usage: pawgram DEL <postID>")
		}
		if err := client.DeletePost(ctx, args[0]); err != nil {
			log.Fatal(err)
		}
		fmt.Println("OK")

	case "PROFILE":
		upd, err := parseProfile(args)
		if err != nil {
			log.Fatal(err)
		}
		account, err := client.UpdateProfile(ctx, upd)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(account)

	case "PING":
		if _, err := client.Config(ctx); err != nil {
			log.Fatal(err)
		}
		fmt.Println("PONG")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

// parseProfile reads "bio=<text>" and "avatar=<image-file>" arguments.
func parseProfile(args []string) (schema.ProfileUpdate, error) {
	var upd schema.ProfileUpdate
	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		if !ok {
			return upd, fmt.Errorf("expected key=value, got %q", arg)
		}
		switch key {
		case "bio":
			upd.Bio = val
		case "avatar":
			image, err := sdk.EncodeImageFile(val)
			if err != nil {
				return upd, err
			}
			upd.ProfilePicture = image
		default:
			return upd, fmt.Errorf("unknown profile field %q", key)
		}
	}
	if upd == (schema.ProfileUpdate{}) {
		return upd, fmt.Errorf("usage: pawgram PROFILE [bio=<text>] [avatar=<image-file>]")
	}
	return upd, nil
}

type postSummary struct {
	ID        string            `json:"_id"`
	Username  string            `json:"username"`
	Caption   string            `json:"caption"`
	Reactions []schema.Reaction `json:"reactions"`
	CreatedAt time.Time         `json:"createdAt"`
}

// summarize drops image payloads, which are too large for a terminal.
func summarize(posts []schema.Post) []postSummary {
	out := make([]postSummary, 0, len(posts))
	for _, p := range posts {
		out = append(out, postSummary{
			ID:        p.ID,
			Username:  p.Username,
			Caption:   p.Caption,
			Reactions: p.Reactions,
			CreatedAt: p.CreatedAt,
		})
	}
	return out
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(data))
}

func printUsage() {
	fmt.Println("Pawgram CLI - Interface for the Pawgram API")
	fmt.Println("\nUsage:")
	fmt.Println("  pawgram REGISTER <username> <password>")
	fmt.Println("  pawgram LOGIN <username> <password>")
	fmt.Println("  pawgram LOGOUT [--all]")
	fmt.Println("  pawgram FEED")
	fmt.Println("  pawgram MINE")
	fmt.Println("  pawgram USER <username>")
	fmt.Println("  pawgram POST <image-file> [caption]")
	fmt.Println("  pawgram REACT <postID> <reaction>")
	fmt.Println("  pawgram DEL <postID>")
	fmt.Println("  pawgram PROFILE [bio=<text>] [avatar=<image-file>]")
	fmt.Println("  pawgram PING")
	fmt.Println("\nEnvironment Variables:")
	fmt.Println("  PAWGRAM_ADDR          Server base URL (default: http://localhost:5000)")
	fmt.Println("  PAWGRAM_TOKEN         Session token printed by LOGIN")
	fmt.Println("  PAWGRAM_INSECURE_TLS  Set to true to accept a self-signed certificate")
}
