package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
	"github.com/satriahrh/schedula/usecase"
)

var (
	emailFlag string
	nameFlag  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the assistant backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()

		email, password, err := promptCredentials(emailFlag, false)
		if err != nil {
			return err
		}

		user, err := a.authService().Login(cmd.Context(), email, password)
		if errors.Is(err, repositories.ErrInvalidCredentials) {
			return errors.New("invalid email or password")
		}
		if err != nil {
			return err
		}
		printf(cmd.OutOrStdout(), "Signed in as %s\n", describeUser(user))
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()

		name := nameFlag
		if name == "" {
			if name, err = prompt("Name: ", false); err != nil {
				return err
			}
		}
		email, password, err := promptCredentials(emailFlag, true)
		if err != nil {
			return err
		}

		user, err := a.authService().Signup(cmd.Context(), name, email, password)
		if err != nil {
			return err
		}
		printf(cmd.OutOrStdout(), "Account created. Signed in as %s\n", describeUser(user))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.authService().Logout(cmd.Context()); err != nil {
			return err
		}
		printf(cmd.OutOrStdout(), "Signed out\n")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()

		user, err := a.authService().Validate(cmd.Context())
		if errors.Is(err, usecase.ErrNotAuthenticated) {
			printf(cmd.OutOrStdout(), "Not signed in\n")
			return nil
		}
		if err != nil {
			return err
		}
		printf(cmd.OutOrStdout(), "%s\n", describeUser(user))
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&emailFlag, "email", "e", "", "Account email")
	signupCmd.Flags().StringVarP(&emailFlag, "email", "e", "", "Account email")
	signupCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Display name")
}

func describeUser(u *entities.User) string {
	if u == nil {
		return "unknown user"
	}
	if u.Name == "" {
		return u.Email
	}
	return fmt.Sprintf("%s <%s>", u.Name, u.Email)
}

func promptCredentials(email string, confirm bool) (string, string, error) {
	var err error
	if email == "" {
		if email, err = prompt("Email: ", false); err != nil {
			return "", "", err
		}
	}
	password, err := prompt("Password: ", true)
	if err != nil {
		return "", "", err
	}
	if confirm {
		again, err := prompt("Confirm password: ", true)
		if err != nil {
			return "", "", err
		}
		if again != password {
			return "", "", errors.New("passwords do not match")
		}
	}
	return email, password, nil
}

// prompt reads a line from the terminal, or from stdin when it is piped
func prompt(label string, secret bool) (string, error) {
	if stat, err := os.Stdin.Stat(); err == nil && stat.Mode()&os.ModeCharDevice == 0 {
		return readLine(os.Stdin)
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if secret {
		return line.PasswordPrompt(label)
	}
	text, err := line.Prompt(label)
	return strings.TrimSpace(text), err
}

var stdinReader *bufio.Reader

func readLine(r io.Reader) (string, error) {
	if stdinReader == nil {
		stdinReader = bufio.NewReader(r)
	}
	text, err := stdinReader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && text != "") {
		return "", err
	}
	return strings.TrimRight(text, "\r\n"), nil
}
