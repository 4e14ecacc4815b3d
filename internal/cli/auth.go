package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/existflow/taskpilot/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to the TaskPilot server",
	RunE:  runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Logout and clear the local session",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE:  runWhoami,
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change your password",
	RunE:  runPasswd,
}

var forgotCmd = &cobra.Command{
	Use:   "forgot-password [email]",
	Short: "Request a password reset link",
	Args:  cobra.ExactArgs(1),
	RunE:  runForgot,
}

var resetCmd = &cobra.Command{
	Use:   "reset-password [token]",
	Short: "Reset your password with a reset token",
	Args:  cobra.ExactArgs(1),
	RunE:  runReset,
}

func promptLine(label string) string {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptPassword(label string) string {
	fmt.Print(label)
	passwordBytes, _ := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	return string(passwordBytes)
}

func runLogin(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	email := promptLine("Email: ")
	password := promptPassword("Password: ")

	fmt.Println("🔄 Logging in...")
	if err := app.Session.Login(cmd.Context(), session.Credentials{Email: email, Password: password}); err != nil {
		return fmt.Errorf("%s", app.Session.LastError())
	}

	fmt.Printf("✅ Logged in as %s\n", app.Session.CurrentUser().Email)
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	name := promptLine("Name: ")
	email := promptLine("Email: ")
	password := promptPassword("Password: ")
	confirm := promptPassword("Confirm Password: ")

	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	fmt.Println("🔄 Creating account...")
	err = app.Session.Register(cmd.Context(), session.Registration{
		Name:                 name,
		Email:                email,
		Password:             password,
		PasswordConfirmation: confirm,
	})
	if err != nil {
		return fmt.Errorf("%s", app.Session.LastError())
	}

	fmt.Println("✅ Account created and logged in!")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if !app.Session.IsAuthenticated() {
		fmt.Println("Not logged in.")
		return nil
	}

	app.Session.Logout(cmd.Context())
	fmt.Println("✅ Logged out.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	u := app.Session.CurrentUser()
	if u == nil {
		fmt.Println("Not logged in.")
		return nil
	}

	fmt.Printf("👤 %s <%s>\n", u.Name, u.Email)
	fmt.Printf("   roles: %s\n", strings.Join(u.Roles, ", "))
	if app.Session.IsAdmin() {
		fmt.Println("   admin: yes")
	}
	return nil
}

func runPasswd(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.requireAuth(); err != nil {
		return err
	}

	current := promptPassword("Current Password: ")
	next := promptPassword("New Password: ")
	confirm := promptPassword("Confirm New Password: ")
	if next != confirm {
		return fmt.Errorf("passwords do not match")
	}

	if err := app.Session.ChangePassword(cmd.Context(), current, next); err != nil {
		return fmt.Errorf("%s", app.Session.LastError())
	}

	fmt.Println("✅ Password changed.")
	return nil
}

func runForgot(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Session.RequestPasswordReset(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("%s", app.Session.LastError())
	}

	fmt.Println("📬 Reset link requested! Check your email.")
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	password := promptPassword("New Password: ")
	confirm := promptPassword("Confirm New Password: ")
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	if err := app.Session.ResetPassword(cmd.Context(), args[0], password); err != nil {
		return fmt.Errorf("%s", app.Session.LastError())
	}

	fmt.Println("✅ Password reset. You can now login.")
	return nil
}
