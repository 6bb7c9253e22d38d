package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jrsteele09/dropzone-client/api"
	"github.com/jrsteele09/dropzone-client/internal/config"
	"github.com/jrsteele09/dropzone-client/internal/utils"
	"github.com/jrsteele09/dropzone-client/oidclogin"
)

const dateLayout = "2006-01-02"

type cli struct {
	v        *viper.Viper
	demo     bool
	envFile  string
	noBanner bool
}

type action func(cmd *cobra.Command, a *app, args []string) error

// do builds the services for one command run and tears them down after.
func (c *cli) do(fn action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(c.envFile); err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), c.v, c.demo, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()
		if !c.noBanner {
			displayAppname(cmd.ErrOrStderr(), a.cfg.GetAppName())
		}
		return fn(cmd, a, args)
	}
}

func newRootCommand() *cobra.Command {
	c := &cli{v: config.NewViper()}
	cmd := &cobra.Command{
		Use:           "dropzone",
		Short:         "Dropzone account, logbook and location client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.BoolVar(&c.demo, "demo", false, "Run against an in-process demo API with a demo account")
	flags.StringVar(&c.envFile, "env-file", ".env", "Optional KEY=VALUE file loaded into the environment")
	flags.BoolVar(&c.noBanner, "no-banner", false, "Do not print the banner")
	flags.String("api-url", "", "Remote API base URL")
	flags.String("store", "", "Session store backend: file, memory or redis")
	flags.String("data-folder", "", "Folder for the encrypted session file")
	flags.String("passphrase", "", "Passphrase for the encrypted session file")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	for key, name := range map[string]string{
		config.KeyBaseURL:      "api-url",
		config.KeyStoreBackend: "store",
		config.KeyDataFolder:   "data-folder",
		config.KeyPassphrase:   "passphrase",
		config.KeyLogLevel:     "log-level",
	} {
		_ = c.v.BindPFlag(key, flags.Lookup(name))
	}

	cmd.AddCommand(
		newStatusCommand(c),
		newLoginCommand(c),
		newLogoutCommand(c),
		newProfileCommand(c),
		newLogbookCommand(c),
		newLocationsCommand(c),
		newSubscriptionCommand(c),
	)
	return cmd
}

func newStatusCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: c.do(func(cmd *cobra.Command, a *app, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state: %s\n", a.provider.State())
			if u := a.provider.User(); u != nil {
				fmt.Fprintf(out, "user:  %s <%s>\n", u.Name, u.Email)
				fmt.Fprintf(out, "pro:   %t\n", a.gate.IsPro())
			}
			return nil
		}),
	}
}

func newLoginCommand(c *cli) *cobra.Command {
	var (
		email    string
		password string
		useOIDC  bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password, or with the configured OpenID provider",
		Args:  cobra.NoArgs,
		RunE: c.do(func(cmd *cobra.Command, a *app, _ []string) error {
			if useOIDC {
				return loginWithOIDC(cmd, a)
			}
			if password == "" {
				password = os.Getenv("DROPZONE_PASSWORD")
			}
			user, err := a.resources.SignIn(cmd.Context(), api.Credentials{Email: email, Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", user.Email)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (or DROPZONE_PASSWORD)")
	cmd.Flags().BoolVar(&useOIDC, "oidc", false, "Sign in through the configured OpenID provider")
	cmd.MarkFlagsMutuallyExclusive("oidc", "email")
	return cmd
}

// loginWithOIDC prints the authorization URL and reads the code the
// provider hands back after the redirect.
func loginWithOIDC(cmd *cobra.Command, a *app) error {
	if a.oidc == nil {
		return errors.New("no OpenID provider configured (set DROPZONE_OAUTH_ISSUER)")
	}
	req, err := oidclogin.NewRequest()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Open this URL to sign in:\n\n  %s\n\nPaste the code: ", a.oidc.AuthCodeURL(req))

	code, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && code == "" {
		return fmt.Errorf("[dropzone login] failed to read code: %w", err)
	}
	params, err := a.oidc.Exchange(cmd.Context(), strings.TrimSpace(code), req)
	if err != nil {
		return err
	}
	a.resources.Reset()
	if err := a.provider.Login(cmd.Context(), params); err != nil {
		return err
	}
	fmt.Fprintf(out, "signed in as %s\n", params.User.Email)
	return nil
}

func newLogoutCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: c.do(func(cmd *cobra.Command, a *app, _ []string) error {
			a.resources.SignOut(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		}),
	}
}

func newProfileCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: c.do(func(cmd *cobra.Command, a *app, _ []string) error {
			res := a.resources.Profile(cmd.Context())
			if res.Err != nil {
				return res.Err
			}
			printProfile(cmd, res.Data)
			return nil
		}),
	}

	var name, bio, home, license string
	set := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields",
		Args:  cobra.NoArgs,
		RunE: c.do(func(cmd *cobra.Command, a *app, _ []string) error {
			var upd api.ProfileUpdate
			fields := map[string]**string{"name": &upd.Name, "bio": &upd.Bio, "home": &upd.HomeDropzone, "license": &upd.LicenseNumber}
			values := map[string]string{"name": name, "bio": bio, "home": home, "license": license}
			for flag, dst := range fields {
				if cmd.Flags().Changed(flag) {
					*dst = utils.Ptr(values[flag])
				}
			}
			p, err := a.resources.UpdateProfile().MutateAsync(cmd.Context(), upd)
			if err != nil {
				return err
			}
			printProfile(cmd, p)
			return nil
		}),
	}
	set.Flags().StringVar(&name, "name", "", "Display name")
	set.Flags().StringVar(&bio, "bio", "", "Short bio")
	set.Flags().StringVar(&home, "home", "", "Home dropzone")
	set.Flags().StringVar(&license, "license", "", "License number")
	cmd.AddCommand(set)
	return cmd
}

func printProfile(cmd *cobra.Command, p api.Profile) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "name:\t%s\n", p.Name)
	fmt.Fprintf(w, "jumps:\t%d\n", p.JumpCount)
	if p.HomeDropzone != "" {
		fmt.Fprintf(w, "home:\t%s\n", p.HomeDropzone)
	}
	if p.LicenseNumber != "" {
		fmt.Fprintf(w, "license:\t%s\n", p.LicenseNumber)
	}
	if p.Bio != "" {
		fmt.Fprintf(w, "bio:\t%s\n", p.Bio)
	}
	_ = w.Flush()
}

func newLogbookCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logbook",
		Short: "Jump logbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List logged jumps, newest first",
		Args:  cobra.NoArgs,
		RunE: c.do(func(cmd *cobra.Command, a *app, _ []string) error {
			res := a.resources.Logbook(cmd.Context())
			if res.Err != nil {
				return res.Err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JUMP\tDATE\tAIRCRAFT\tEXIT\tID")
			for _, e := range res.Data {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", e.JumpNumber, e.Date.Format(dateLayout), e.Aircraft, e.ExitAltitude, e.ID)
			}
			return w.Flush()
		}),
	}

	var (
		entry api.NewLogbookEntry
		date  string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Log a jump",
		Args:  cobra.NoArgs,
		RunE: c.do(func(cmd *cobra.Command, a *app, _ []string) error {
			entry.Date = time.Now()
			if date != "" {
				d, err := time.Parse(dateLayout, date)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
				entry.Date = d
			}
			created, err := a.resources.AddLogbookEntry().MutateAsync(cmd.Context(), entry)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged jump %d (%s)\n", created.JumpNumber, created.ID)
			return nil
		}),
	}
	add.Flags().IntVar(&entry.JumpNumber, "jump", 0, "Jump number")
	add.Flags().StringVar(&date, "date", "", "Jump date (YYYY-MM-DD), defaults to today")
	add.Flags().StringVar(&entry.LocationID, "location", "", "Location id")
	add.Flags().StringVar(&entry.Aircraft, "aircraft", "", "Aircraft")
	add.Flags().IntVar(&entry.ExitAltitude, "altitude", 0, "Exit altitude in feet")
	add.Flags().IntVar(&entry.FreefallSeconds, "freefall", 0, "Freefall time in seconds")
	add.Flags().StringVar(&entry.Notes, "notes", "", "Notes")
	_ = add.MarkFlagRequired("jump")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a logged jump",
		Args:  cobra.ExactArgs(1),
		RunE: c.do(func(cmd *cobra.Command, a *app, args []string) error {
			if _, err := a.resources.DeleteLogbookEntry().MutateAsync(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	}

	cmd.AddCommand(list, add, del)
	return cmd
}

func newLocationsCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Discover and save dropzones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var (
		filter    api.LocationFilter
		savedOnly bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List locations",
		Args:  cobra.NoArgs,
		RunE: c.do(func(cmd *cobra.Command, a *app, _ []string) error {
			res := a.resources.Locations(cmd.Context(), filter)
			if savedOnly {
				res = a.resources.SavedLocations(cmd.Context())
			}
			if res.Err != nil {
				return res.Err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCOUNTRY\tTYPE\tSAVED")
			for _, l := range res.Data {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", l.ID, l.Name, l.Country, l.Type, l.IsSaved)
			}
			return w.Flush()
		}),
	}
	list.Flags().StringVar(&filter.Country, "country", "", "Country code")
	list.Flags().StringVar(&filter.Type, "type", "", "Location type, e.g. dropzone or tunnel")
	list.Flags().StringVar(&filter.Search, "search", "", "Name search")
	list.Flags().IntVar(&filter.Limit, "limit", 0, "Maximum results")
	list.Flags().BoolVar(&savedOnly, "saved", false, "Only saved locations")

	save := &cobra.Command{
		Use:   "save ID",
		Short: "Save a location",
		Args:  cobra.ExactArgs(1),
		RunE: c.do(func(cmd *cobra.Command, a *app, args []string) error {
			if _, err := a.resources.SaveLocation().MutateAsync(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", args[0])
			return nil
		}),
	}
	unsave := &cobra.Command{
		Use:   "unsave ID",
		Short: "Remove a saved location",
		Args:  cobra.ExactArgs(1),
		RunE: c.do(func(cmd *cobra.Command, a *app, args []string) error {
			if _, err := a.resources.UnsaveLocation().MutateAsync(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unsaved %s\n", args[0])
			return nil
		}),
	}

	var sub api.NewLocationSubmission
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Propose a new location (Pro)",
		Args:  cobra.NoArgs,
		RunE: c.do(func(cmd *cobra.Command, a *app, _ []string) error {
			created, err := a.resources.SubmitLocation().MutateAsync(cmd.Context(), sub)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted %s (%s)\n", created.Name, created.Status)
			return nil
		}),
	}
	submit.Flags().StringVar(&sub.Name, "name", "", "Location name")
	submit.Flags().StringVar(&sub.Country, "country", "", "Country code")
	submit.Flags().Float64Var(&sub.Latitude, "lat", 0, "Latitude")
	submit.Flags().Float64Var(&sub.Longitude, "lng", 0, "Longitude")
	submit.Flags().StringVar(&sub.Website, "website", "", "Website")

	cmd.AddCommand(list, save, unsave, submit)
	return cmd
}

func newSubscriptionCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Show the Pro subscription and available packages",
		Args:  cobra.NoArgs,
		RunE: c.do(func(cmd *cobra.Command, a *app, _ []string) error {
			pkgs, err := a.gate.Packages(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pro: %t\n", a.gate.IsPro())
			for _, p := range pkgs {
				fmt.Fprintf(out, "  %s\t%s\t%s\n", p.ID, p.Title, p.Price)
			}
			return nil
		}),
	}
	purchase := &cobra.Command{
		Use:   "purchase PACKAGE",
		Short: "Purchase a package",
		Args:  cobra.ExactArgs(1),
		RunE: c.do(func(cmd *cobra.Command, a *app, args []string) error {
			pkgs, err := a.gate.Packages(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range pkgs {
				if p.ID != args[0] {
					continue
				}
				info, err := a.gate.Purchase(cmd.Context(), p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pro: %t\n", info.IsPro)
				return nil
			}
			return fmt.Errorf("unknown package %q", args[0])
		}),
	}
	cmd.AddCommand(purchase)
	return cmd
}
