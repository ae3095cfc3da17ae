// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry defines the Prometheus collectors of the assistant.
//
// # Key Types
//
//   - Metrics: streaming session and item mutation collectors used by core
//   - ServerMetrics: HTTP collectors used by the development server
//
// Both register on a caller-supplied prometheus.Registerer, so tests can
// use a private registry. A nil *Metrics or *ServerMetrics records nothing.
package telemetry
