// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for golem.
//
// This package handles saving and loading conversations to/from disk,
// with support for search, listing, renaming, export, and optional
// at-rest encryption.
//
// # Key Types
//
//   - Store: Main storage interface for conversations
//   - StoredConversation: Serializable conversation with metadata
//   - ConversationMeta: Lightweight metadata for listing
//
// # Usage
//
// Create a store and save a conversation:
//
//	store, err := storage.NewStore()
//	id, err := store.SaveConversation(conversation)
//
// List and load conversations:
//
//	metas, err := store.List()
//	conv, err := store.Load(metas[0].ID)
//
// Search conversations:
//
//	results, err := store.Search("query text")
//
// # Encryption
//
// Opt in to at-rest encryption with a passphrase:
//
//	err := store.EnableEncryption("correct horse battery staple")
//
// Encrypted and plaintext files can coexist; loading detects the format
// per file, so existing history keeps working after opting in.
//
// # Storage Location
//
// Conversations are stored in ~/.golem/conversations/ as one file per
// conversation, named by conversation ID. Files and the directory are
// owner-only (0600/0700).
package storage
