// Package credentials is the Postgres-backed account store for careAuth. It
// satisfies the engine's CredentialStore, AccountLookup and AccountCreator
// collaborators and adds the administrative updates (approval, activation,
// hash upgrades) the engine itself never performs.
package credentials
