package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"postfinance/internal/checksum"
)

func signCmd() *cobra.Command {
	var (
		secret    string
		algorithm string
		verify    bool
		showInput bool
	)
	cmd := &cobra.Command{
		Use:   "sign key=value...",
		Short: "Compute or check the SHA signature of a field set",
		Long: `Compute the SHASign of a payment request, or with --verify check the
SHASIGN of a notification, for comparing against the PostFinance back office.

The secret defaults to POSTFINANCE_SECRET_KEY for signing and to
POSTFINANCE_SHAOUT_KEY for --verify.

Examples:
  postfinance sign orderID=Test27 amount=5400 currency=CHF --secret mySecretKey
  postfinance sign --verify orderID=Test27 amount=54 PAYID=8628366 SHASIGN=...`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFieldArgs(args)
			if err != nil {
				return err
			}
			algo, err := checksum.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}
			if secret == "" {
				if verify {
					secret = os.Getenv("POSTFINANCE_SHAOUT_KEY")
				} else {
					secret = os.Getenv("POSTFINANCE_SECRET_KEY")
				}
			}
			if secret == "" {
				return fmt.Errorf("no secret given, use --secret or set the passphrase environment variable")
			}

			out := cmd.OutOrStdout()
			if showInput {
				fmt.Fprintln(out, checksum.Digest(fields, secret))
			}
			if verify {
				if err := checksum.Check(fields, secret, algo); err != nil {
					fmt.Fprintf(out, "invalid: %v\n", err)
					return err
				}
				fmt.Fprintln(out, "valid")
				return nil
			}
			sig, err := checksum.Sign(fields, secret, algo)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, sig)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "SHA-IN or SHA-OUT passphrase")
	cmd.Flags().StringVar(&algorithm, "algorithm", os.Getenv("POSTFINANCE_HASH_ALGORITHM"), "SHA-1, SHA-256 or SHA-512")
	cmd.Flags().BoolVar(&verify, "verify", false, "check the SHASIGN argument instead of signing")
	cmd.Flags().BoolVar(&showInput, "show-input", false, "print the string that is hashed")
	return cmd
}

func parseFieldArgs(args []string) (*checksum.FieldSet, error) {
	fields := checksum.NewFieldSet()
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed field %q, expected key=value", arg)
		}
		fields.Set(k, v)
	}
	return fields, nil
}
