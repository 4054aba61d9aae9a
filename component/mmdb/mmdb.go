// modified from clash source code
package mmdb

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/intxff/sstunnel/log"
	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

// DownloadURL serves a country database when none is found on disk.
var DownloadURL = "https://cdn.jsdelivr.net/gh/Dreamacro/maxmind-geoip@release/Country.mmdb"

func download(path string) error {
	resp, err := http.Get(DownloadURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %v", resp.Status)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

// Load opens the country database at path, downloading it first when it is
// missing or unreadable.
func Load(path string) (*geoip2.Reader, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Info("[MMDB] not found, start download", zap.String("path", path))
		if err := download(path); err != nil {
			return nil, fmt.Errorf("can't download MMDB: %w", err)
		}
	}

	db, err := geoip2.Open(path)
	if err == nil {
		return db, nil
	}

	log.Warn("[MMDB] invalid, remove and download", zap.Error(err))
	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("can't remove invalid MMDB: %w", err)
	}
	if err := download(path); err != nil {
		return nil, fmt.Errorf("can't download MMDB: %w", err)
	}
	return geoip2.Open(path)
}

// Country returns the ISO code of ip, empty when the database has none.
func Country(db *geoip2.Reader, ip net.IP) (string, error) {
	record, err := db.Country(ip)
	if err != nil {
		return "", err
	}
	return record.Country.IsoCode, nil
}
