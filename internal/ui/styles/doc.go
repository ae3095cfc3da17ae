// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling of the assistant panel.

Colors use Lip Gloss AdaptiveColor so the panel reads on light and dark
terminals. Item statuses are always rendered with a shape indicator next to
the color:

	[OK] Compliant
	[~]  Partial
	[X]  Non-compliant
	[-]  Not applicable
	[ ]  Not assessed
*/
package styles
