package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"travelmap/pkg/auth"
	"travelmap/pkg/config"
	"travelmap/pkg/instagram"
	"travelmap/pkg/logger"
	"travelmap/pkg/retry"
	"travelmap/pkg/ui"
)

var shortOnly bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Instagram access tokens",
	Long: `Obtain, refresh and store Instagram Graph API access tokens.

Tokens are stored in:
  - the system keychain (when available)
  - an encrypted file in the user config directory
  - TRAVELMAP_ACCESS_TOKEN / INSTAGRAM_ACCESS_TOKEN (read only)

Never share your tokens or config files!`,
}

// urlCmd represents the auth url command
var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the authorization URL to open in a browser",
	Long: `Print the Instagram authorization URL for the configured app. After
approving access the browser is redirected to the redirect URI with a
?code=... parameter; pass that code to 'travelmap auth exchange'.`,
	Args: cobra.NoArgs,
	RunE: runAuthURL,
}

// exchangeCmd represents the auth exchange command
var exchangeCmd = &cobra.Command{
	Use:   "exchange [code]",
	Short: "Exchange an authorization code for a token and store it",
	Long: `Exchange an authorization code for a short-lived token, upgrade it to a
long-lived token (valid for 60 days) and store it.

The app's client id, client secret and redirect URI are read from the
configuration. The client secret is prompted for when missing.`,
	Example: `  travelmap auth url
  travelmap auth exchange AQBx...#_`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExchange,
}

// longLivedCmd represents the auth long-lived command
var longLivedCmd = &cobra.Command{
	Use:   "long-lived",
	Short: "Upgrade a short-lived token and store it",
	Long:  `Exchange a short-lived access token, read without echo, for a long-lived one and store it.`,
	Args:  cobra.NoArgs,
	RunE:  runLongLived,
}

// refreshCmd represents the auth refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh [username]",
	Short: "Refresh a stored long-lived token",
	Long: `Refresh a stored long-lived token, extending it by another 60 days.
Tokens must be at least 24 hours old and not yet expired to be refreshed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRefresh,
}

// authShowCmd represents the auth show command
var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List stored tokens",
	Long:  `List all stored tokens with the secret masked.`,
	Args:  cobra.NoArgs,
	RunE:  runAuthShow,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored tokens",
	Long: `Remove a stored token.

If no username is provided, you will be shown a list of stored tokens
to choose from. You can also remove all of them at once.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(urlCmd)
	authCmd.AddCommand(exchangeCmd)
	authCmd.AddCommand(longLivedCmd)
	authCmd.AddCommand(refreshCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(logoutCmd)

	exchangeCmd.Flags().BoolVar(&shortOnly, "short-only", false, "store the short-lived token without upgrading it")
}

// newAuthClient builds a Graph API client for token calls
func newAuthClient(cfg *config.Config) *instagram.Client {
	log := logger.GetLogger()
	return instagram.NewClient(cfg.Instagram,
		instagram.WithLogger(log),
		instagram.WithRetry(retry.FromConfig(cfg.Retry, log)),
	)
}

func runAuthURL(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	u, err := newAuthClient(cfg).AuthorizeURL()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), u)
	return nil
}

func runExchange(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	var code string
	if len(args) > 0 {
		code = args[0]
	} else {
		fmt.Print("Authorization code: ")
		if code, err = readPassword(); err != nil {
			return fmt.Errorf("failed to read code: %w", err)
		}
	}
	// Instagram appends #_ to the code in the redirect
	code = strings.TrimSuffix(strings.TrimSpace(code), "#_")

	if cfg.Instagram.ClientSecret == "" {
		fmt.Print("Client secret: ")
		secret, err := readPassword()
		if err != nil {
			return fmt.Errorf("failed to read client secret: %w", err)
		}
		cfg.Instagram.ClientSecret = secret
	}

	ctx := context.Background()
	client := newAuthClient(cfg)

	short, err := client.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}
	if shortOnly {
		return saveToken(ctx, client, short.AccessToken, "short_lived", time.Now().Add(time.Hour), short.UserID.String())
	}

	long, err := client.ExchangeLongLived(ctx, short.AccessToken)
	if err != nil {
		return err
	}
	return saveToken(ctx, client, long.AccessToken, long.TokenType, long.ExpiresAt(time.Now()), short.UserID.String())
}

func runLongLived(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	fmt.Print("Short-lived token: ")
	short, err := readPassword()
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if cfg.Instagram.ClientSecret == "" {
		fmt.Print("Client secret: ")
		if cfg.Instagram.ClientSecret, err = readPassword(); err != nil {
			return fmt.Errorf("failed to read client secret: %w", err)
		}
	}

	ctx := context.Background()
	client := newAuthClient(cfg)
	long, err := client.ExchangeLongLived(ctx, short)
	if err != nil {
		return err
	}
	return saveToken(ctx, client, long.AccessToken, long.TokenType, long.ExpiresAt(time.Now()), "")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}

	var token *auth.Token
	if len(args) > 0 {
		token, err = manager.Retrieve(args[0])
	} else {
		token, err = manager.RetrieveDefault()
	}
	if err != nil {
		return err
	}
	if token.Expired(time.Now()) {
		return fmt.Errorf("the token for %s has expired and cannot be refreshed; run 'travelmap auth exchange'", token.Username)
	}

	long, err := newAuthClient(cfg).RefreshLongLived(context.Background(), token.AccessToken)
	if err != nil {
		return err
	}

	token.AccessToken = long.AccessToken
	token.TokenType = long.TokenType
	token.ExpiresAt = long.ExpiresAt(time.Now())
	token.LastModified = time.Now()
	if err := manager.Store(token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	ui.PrintSuccess("Token refreshed: " + token.Username)
	ui.PrintInfo("Expires", token.ExpiresAt.Format("2006-01-02"))
	return nil
}

// saveToken looks up the account the token belongs to and stores it
func saveToken(ctx context.Context, client *instagram.Client, accessToken, tokenType string, expiresAt time.Time, userID string) error {
	client.SetAccessToken(accessToken)
	profile, err := client.FetchProfile(ctx, userID)
	if err != nil {
		return fmt.Errorf("token obtained but the profile lookup failed: %w", err)
	}

	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}
	token := &auth.Token{
		Username:     profile.Username,
		UserID:       profile.ID,
		AccessToken:  accessToken,
		TokenType:    tokenType,
		ExpiresAt:    expiresAt,
		LastModified: time.Now(),
	}
	if err := manager.Store(token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	ui.PrintSuccess("Token stored for " + profile.Username)
	ui.PrintInfo("Token", auth.MaskString(accessToken))
	if !expiresAt.IsZero() {
		ui.PrintInfo("Expires", expiresAt.Format("2006-01-02"))
	}
	return nil
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}
	tokens, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}

	if len(tokens) == 0 {
		ui.PrintInfo("No stored tokens", "Use 'travelmap auth exchange' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Tokens")
	fmt.Println()

	now := time.Now()
	for i, token := range tokens {
		sanitized := auth.SanitizeToken(token)
		fmt.Printf("%d. Username: %s\n", i+1, sanitized.Username)
		if sanitized.UserID != "" {
			fmt.Printf("   User ID: %s\n", sanitized.UserID)
		}
		fmt.Printf("   Token: %s\n", sanitized.AccessToken)
		if sanitized.TokenType != "" {
			fmt.Printf("   Type: %s\n", sanitized.TokenType)
		}
		switch {
		case sanitized.ExpiresAt.IsZero():
			fmt.Println("   Expires: unknown")
		case token.Expired(now):
			fmt.Printf("   Expires: %s\n", ui.Red("expired "+sanitized.ExpiresAt.Format("2006-01-02")))
		default:
			fmt.Printf("   Expires: %s\n", sanitized.ExpiresAt.Format("2006-01-02"))
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}

	if len(args) > 0 {
		if err := manager.Delete(args[0]); err != nil {
			return fmt.Errorf("failed to remove token: %w", err)
		}
		ui.PrintSuccess("Token removed: " + args[0])
		return nil
	}

	tokens, err := manager.List()
	if err != nil || len(tokens) == 0 {
		ui.PrintError("No stored tokens found", "")
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	if len(tokens) == 1 {
		token := tokens[0]
		fmt.Printf("Remove token for '%s'? (y/N): ", token.Username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
		if err := manager.Delete(token.Username); err != nil {
			return fmt.Errorf("failed to remove token: %w", err)
		}
		ui.PrintSuccess("Token removed: " + token.Username)
		return nil
	}

	fmt.Println("Select token to remove:")
	for i, token := range tokens {
		fmt.Printf("  %d. %s\n", i+1, token.Username)
	}
	fmt.Printf("  %d. Remove all tokens\n", len(tokens)+1)
	fmt.Printf("  0. Cancel\n\n")

	fmt.Print("Choice: ")
	input, _ := reader.ReadString('\n')
	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

	switch {
	case choice == 0:
		return nil
	case choice == len(tokens)+1:
		fmt.Print("Remove ALL tokens? This cannot be undone! (yes/N): ")
		confirm, _ := reader.ReadString('\n')
		if strings.TrimSpace(confirm) != "yes" {
			return nil
		}
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove all tokens: %w", err)
		}
		ui.PrintSuccess("All tokens removed")
		return nil
	case choice > 0 && choice <= len(tokens):
		token := tokens[choice-1]
		if err := manager.Delete(token.Username); err != nil {
			return fmt.Errorf("failed to remove token: %w", err)
		}
		ui.PrintSuccess("Token removed: " + token.Username)
		return nil
	default:
		return fmt.Errorf("invalid choice %q", strings.TrimSpace(input))
	}
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
