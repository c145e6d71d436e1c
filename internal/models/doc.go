// Package models defines the core domain models for splitthat.
//
// # Extraction
//
//   - Split: the structured result of reading a receipt (items, tax, tip)
//   - Item: one line of the receipt with its assignees
//   - AssigneeAmount: an amount (tax or tip) and who shares it
//
// # Publishing
//
//   - PublishRequest: what the client asks the ledger to record
//   - PersistedSplit: the local record of a published split
//
// # Accounts
//
//   - User: a local account bound to one ledger identity
//   - Participant, Group: snapshots of the ledger's friends and groups
//
// Participants in an extracted Split are referenced by the names the caller
// supplied. Participants in a PublishRequest are referenced by ledger user IDs.
package models
