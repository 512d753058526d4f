// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - SecretStore: Opaque credential blob persistence (token, client secret)
//   - OAuthClient: Authorization URL, code exchange, refresh, user info
//   - LoopbackListener / BrowserLauncher: Interactive sign-in plumbing
//   - DriveClient: Folder listing and file download
//   - SheetsClient: Spreadsheet creation and row append
//   - DocumentParser: Resume text and field extraction
//   - JobStore: Durable job status, results and requests
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
