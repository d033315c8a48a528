/*
 * This file is part of Chihaya.
 *
 * Chihaya is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * Chihaya is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with Chihaya.  If not, see <http://www.gnu.org/licenses/>.
 */

package store

// Group is a user class: banned/validating/disabled groups cannot
// announce, others carry a download-slot quota and credit factors.
type Group struct {
	ID   uint32
	Slug string

	// DownloadSlots is nil when the group has no leech-slot cap.
	DownloadSlots *uint32

	IsImmune bool

	UploadFactor   uint8
	DownloadFactor uint8
}

func (g *Group) IsDisabled() bool {
	switch g.Slug {
	case "banned", "validating", "disabled":
		return true
	default:
		return false
	}
}
