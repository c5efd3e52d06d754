package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quindar/devicetrust/internal/auth"
	"github.com/quindar/devicetrust/internal/ca"
	"github.com/quindar/devicetrust/internal/config"
	"github.com/quindar/devicetrust/internal/db"
	"github.com/quindar/devicetrust/internal/db/repository"
	"github.com/quindar/devicetrust/internal/models"
	"github.com/quindar/devicetrust/internal/trust"
)

var (
	configPath string
	cfg        *config.Config
	database   *db.DB
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Device trust server administration tool",
	Long:  "Administrative tool for managing device registrations, revocations, and audit logs",
}

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage devices",
}

var devicePendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List devices awaiting approval",
	RunE:  listPending,
}

var deviceApproveCmd = &cobra.Command{
	Use:   "approve <device-id>",
	Short: "Approve a pending device and issue its certificate",
	Args:  cobra.ExactArgs(1),
	RunE:  approveDevice,
}

var deviceRejectCmd = &cobra.Command{
	Use:   "reject <device-id>",
	Short: "Reject a pending device",
	Args:  cobra.ExactArgs(1),
	RunE:  rejectDevice,
}

var deviceRevokeCmd = &cobra.Command{
	Use:   "revoke <device-id>",
	Short: "Revoke a device's certificate",
	Args:  cobra.ExactArgs(1),
	RunE:  revokeDevice,
}

var deviceRemoveCmd = &cobra.Command{
	Use:   "remove <device-id>",
	Short: "Remove a device from its account",
	Args:  cobra.ExactArgs(1),
	RunE:  removeDevice,
}

var crlCmd = &cobra.Command{
	Use:   "crl",
	Short: "Print the certificate revocation list",
	RunE:  printCRL,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List recent audit log entries",
	RunE:  listAudit,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the admin token",
}

var tokenGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new admin token and its bcrypt hash for the config file",
	RunE:  generateToken,
}

var totpCmd = &cobra.Command{
	Use:   "totp-secret",
	Short: "Generate a TOTP secret for guarding sensitive admin actions",
	RunE:  generateTOTP,
}

var (
	actor      string
	reason     string
	auditLimit int
)

func init() {
	// Root flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/device-trust/config.yaml", "Config file path")

	deviceApproveCmd.Flags().StringVarP(&actor, "actor", "a", "", "Acting administrator (required)")
	deviceApproveCmd.MarkFlagRequired("actor")
	deviceRejectCmd.Flags().StringVarP(&actor, "actor", "a", "", "Acting administrator (required)")
	deviceRejectCmd.Flags().StringVarP(&reason, "reason", "r", "", "Rejection reason")
	deviceRejectCmd.MarkFlagRequired("actor")
	deviceRevokeCmd.Flags().StringVarP(&actor, "actor", "a", "", "Acting administrator (required)")
	deviceRevokeCmd.Flags().StringVarP(&reason, "reason", "r", "", "Revocation reason")
	deviceRevokeCmd.MarkFlagRequired("actor")
	deviceRemoveCmd.Flags().StringVarP(&actor, "actor", "a", "", "Acting administrator (required)")
	deviceRemoveCmd.MarkFlagRequired("actor")

	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "Maximum entries to show")

	// Add commands
	deviceCmd.AddCommand(devicePendingCmd)
	deviceCmd.AddCommand(deviceApproveCmd)
	deviceCmd.AddCommand(deviceRejectCmd)
	deviceCmd.AddCommand(deviceRevokeCmd)
	deviceCmd.AddCommand(deviceRemoveCmd)
	tokenCmd.AddCommand(tokenGenerateCmd)
	rootCmd.AddCommand(deviceCmd)
	rootCmd.AddCommand(crlCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(totpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initDB() error {
	// Load configuration
	var err error
	cfg, err = config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Connect to database
	database, err = db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	return nil
}

func newService() *trust.Service {
	// Same persisted CA key pair as the server, so CLI-issued
	// certificates chain to the CA certificate it publishes
	signing := ca.NewSigningContext(
		cfg.CA.CommonName,
		cfg.CA.Organization,
		cfg.CA.Country,
		cfg.CA.KeyBits,
		cfg.CA.KeyPath,
		cfg.CA.CertPath,
	)
	issuer := ca.NewIssuer(signing, cfg.CA.KeyBits, cfg.Policy.CertValidityDays)

	return trust.NewService(
		database,
		repository.NewDeviceRepository(database.DB),
		repository.NewRevocationRepository(database.DB),
		issuer,
		cfg.Policy.MaxDevicesPerAccount,
		zap.NewNop().Sugar(),
	)
}

func listPending(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	deviceRepo := repository.NewDeviceRepository(database.DB)
	devices, err := deviceRepo.ListByStatus(models.StatusPendingApproval, 200)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No pending devices")
		return nil
	}

	fmt.Printf("\nPending devices: %d\n\n", len(devices))
	fmt.Printf("%-14s %-18s %-20s %-15s %s\n", "Device ID", "MAC", "Account", "Type", "Requested")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, d := range devices {
		fmt.Printf("%-14s %-18s %-20s %-15s %s\n",
			d.DeviceID,
			d.MACAddress,
			d.AccountToken,
			d.DeviceType,
			d.RequestedAt.Format("2006-01-02 15:04:05"),
		)
	}

	return nil
}

func approveDevice(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	cert, err := newService().Approve(args[0], actor)
	if err != nil {
		return fmt.Errorf("failed to approve device: %w", err)
	}

	fmt.Printf("\nDevice approved!\n")
	fmt.Printf("Serial:      %s\n", cert.SerialNumber)
	fmt.Printf("Expires:     %s\n", cert.ExpiresAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Fingerprint: %s\n", cert.Fingerprint)
	fmt.Printf("Subject:     %s\n", cert.SubjectDN)
	fmt.Printf("Issuer:      %s\n", cert.IssuerDN)

	return nil
}

func rejectDevice(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	device, err := newService().Reject(args[0], actor, reason)
	if err != nil {
		return fmt.Errorf("failed to reject device: %w", err)
	}

	fmt.Printf("Device %s rejected by %s\n", device.DeviceID, actor)
	return nil
}

func revokeDevice(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	result, err := newService().Revoke(args[0], actor, reason)
	if err != nil {
		return fmt.Errorf("failed to revoke device: %w", err)
	}

	fmt.Printf("Device %s revoked (serial %s, ledger updated: %t)\n",
		result.DeviceID, result.SerialNumber, result.LedgerUpdated)
	return nil
}

func removeDevice(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	result, err := newService().Remove(args[0], actor)
	if err != nil {
		return fmt.Errorf("failed to remove device: %w", err)
	}

	fmt.Printf("Device %s removed (serial %s, ledger updated: %t)\n",
		result.DeviceID, result.SerialNumber, result.LedgerUpdated)
	return nil
}

func printCRL(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	snapshot, err := newService().GetCRL()
	if err != nil {
		return fmt.Errorf("failed to generate CRL: %w", err)
	}

	fmt.Printf("\nRevoked certificates: %d\n", len(snapshot.Entries))
	fmt.Printf("Checksum: %s\n\n", snapshot.Checksum)

	for _, e := range snapshot.Entries {
		fmt.Printf("%-40s %-14s %-18s %s\n",
			e.SerialNumber,
			e.DeviceID,
			string(e.RevocationType),
			e.RevokedAt.Format("2006-01-02 15:04:05"),
		)
	}

	return nil
}

func listAudit(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	auditRepo := repository.NewAuditRepository(database.DB)
	logs, err := auditRepo.List("", "", auditLimit)
	if err != nil {
		return fmt.Errorf("failed to list audit logs: %w", err)
	}

	for _, l := range logs {
		status := "ok"
		if !l.Success {
			status = "FAILED"
		}
		fmt.Printf("%s  %-18s %-12s %-14s %-8s %s\n",
			l.Timestamp.Format("2006-01-02 15:04:05"),
			l.Action,
			l.Actor,
			l.DeviceID,
			status,
			l.ErrorMsg,
		)
	}

	return nil
}

func generateToken(cmd *cobra.Command, args []string) error {
	token, err := auth.GenerateAdminToken()
	if err != nil {
		return err
	}

	hash, err := auth.HashAdminToken(token)
	if err != nil {
		return err
	}

	fmt.Printf("\nAdmin token (give to operators, shown only once):\n%s\n", token)
	fmt.Printf("\nConfig entry (admin.token_hash):\n%s\n", hash)
	return nil
}

func generateTOTP(cmd *cobra.Command, args []string) error {
	secret, err := auth.GenerateTOTPSecret()
	if err != nil {
		return err
	}

	fmt.Printf("\nTOTP secret (config entry admin.totp_secret):\n%s\n", secret)
	fmt.Printf("\nQR URL:\n%s\n", auth.GenerateQRCodeURL(secret, "admin", ""))
	fmt.Printf("\nScan the QR URL with a TOTP app (Google Authenticator, Authy, etc.)\n")
	return nil
}
