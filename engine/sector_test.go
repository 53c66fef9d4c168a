package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/INLOpen/nexusflash/core"
)

func TestUpdateActiveSector_ResolutionTable(t *testing.T) {
	cases := []struct {
		name     string
		status1  core.SectorStatus
		status2  core.SectorStatus
		want     logicalSector
		promoted logicalSector // sector whose status must read ACTIVE afterwards
	}{
		{"both erased", core.SectorErased, core.SectorErased, noSector, noSector},
		{"sector1 active", core.SectorActive, core.SectorErased, sector1, noSector},
		{"sector2 active", core.SectorErased, core.SectorActive, sector2, noSector},
		{"active beats copy", core.SectorActive, core.SectorCopy, sector1, noSector},
		{"copy loses to active", core.SectorCopy, core.SectorActive, sector2, noSector},
		{"active beats inactive", core.SectorActive, core.SectorInactive, sector1, noSector},
		{"inactive loses to active", core.SectorInactive, core.SectorActive, sector2, noSector},
		{"committed swap into sector1", core.SectorCopy, core.SectorInactive, sector1, sector1},
		{"committed swap into sector2", core.SectorInactive, core.SectorCopy, sector2, sector2},
		{"lonely copy in sector1", core.SectorCopy, core.SectorErased, noSector, noSector},
		{"lonely copy in sector2", core.SectorErased, core.SectorCopy, noSector, noSector},
		{"lonely inactive in sector1", core.SectorInactive, core.SectorErased, noSector, noSector},
		{"lonely inactive in sector2", core.SectorErased, core.SectorInactive, noSector, noSector},
		{"both inactive", core.SectorInactive, core.SectorInactive, noSector, noSector},
		{"both copy", core.SectorCopy, core.SectorCopy, noSector, noSector},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, rig := newTestEngine(t)
			rig.eraseAll()
			rig.setSectorStatus(sectorBase1, tc.status1)
			rig.setSectorStatus(sectorBase2, tc.status2)

			require.NoError(t, e.updateActiveSector())
			require.Equal(t, tc.want, e.active)
			if tc.want != noSector {
				require.Equal(t, tc.want.other(), e.alternate)
			}
			if tc.promoted != noSector {
				base := sectorBase1
				if tc.promoted == sector2 {
					base = sectorBase2
				}
				rig.requireSectorStatus(base, core.SectorActive)
			}
		})
	}
}

func TestUpdateActiveSector_GarbageFlash(t *testing.T) {
	// Force both headers to a word outside the status lifecycle, as after
	// a corrupted or foreign image.
	e, rig := newTestEngine(t)
	require.NoError(t, rig.store.Write(sectorBase1, []byte{0x00, 0x00}))
	require.NoError(t, rig.store.Write(sectorBase2, []byte{0x00, 0x00}))
	require.NoError(t, e.updateActiveSector())
	require.Equal(t, noSector, e.active)
}

func TestSectorErased(t *testing.T) {
	e, rig := newTestEngine(t)

	erased, err := e.sectorErased(sector1)
	require.NoError(t, err)
	require.False(t, erased, "fresh flash holds garbage")

	rig.eraseAll()
	erased, err = e.sectorErased(sector1)
	require.NoError(t, err)
	require.True(t, erased)

	require.NoError(t, rig.store.Write(sectorBase1+100, []byte{0x7F}))
	erased, err = e.sectorErased(sector1)
	require.NoError(t, err)
	require.False(t, erased, "a single programmed byte disqualifies the sector")
}

func TestErasableSector(t *testing.T) {
	e, rig := newTestEngine(t)
	rig.eraseAll()

	s, err := e.erasableSector()
	require.NoError(t, err)
	require.Equal(t, noSector, s, "no active sector means nothing to erase")

	rig.setSectorStatus(sectorBase1, core.SectorActive)
	require.NoError(t, e.updateActiveSector())

	s, err = e.erasableSector()
	require.NoError(t, err)
	require.Equal(t, noSector, s, "erased alternate needs no work")

	rig.setSectorStatus(sectorBase2, core.SectorInactive)
	s, err = e.erasableSector()
	require.NoError(t, err)
	require.Equal(t, sector2, s, "inactive leftover from a swap is reclaimable")
}
