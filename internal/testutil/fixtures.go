// Package testutil provides raw extract fixtures and loggers for package tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Expected totals of the raw fixture set written by WriteRawFixtures.
const (
	FixturePaidSpend       = "210.49"
	FixturePaidRows        = 6
	FixtureWebRawRows      = 5
	FixtureWebExcluded     = 1
	FixtureWebDailyRows    = 2
	FixtureEcomGross       = "45.00"
	FixtureEcomLines       = 4
	FixtureOOHSpend        = "1100.00"
	FixtureOOHWeeklyRows   = 2
	FixturePodcastNames    = 2
	FixtureOrganicPosts    = 3
	FixtureLocalGeoRows    = 2
	FixtureNationalGeoRows = 2
)

const paidHeader = "date,channel,campaign_name,campaign_id,dma_name,state,spend,impressions,clicks," +
	"video_views,video_25pct,video_50pct,video_75pct,video_completes,optimization_goal,age_target,audience_segment"

// RawFixtures maps file names to CSV contents of a small but complete raw
// extract set. Paid social covers every drift variant; the 2024 Q1 web file
// re-exports one December 2023 event; one ecommerce line is a return; one OOH
// airport is absent from the lookup.
var RawFixtures = map[string]string{
	"sBelles_paid_instagram_part1.csv": lines(
		paidHeader,
		"2023-01-01,instagram,Instagram Always On,IG-AO-1,Atlanta,GA,100.10,1000,10,500,400,300,200,100,reach,18-34,moms",
		"2023-01-02,instagram,Instagram Always On,IG-AO-1,Atlanta,GA,50.05,500,5,250,200,150,100,50,reach,18-34,moms",
	),
	"sBelles_paid_instagram_part3_schema_drift.csv": lines(
		" Date ,Channel,Campaign_Name,Campaign_ID,DMA_Name,State,Spend_USD,Spend_Currency,Impressions,Clicks,"+
			"Video_Views,Video_25pct,Video_50pct,Video_75pct,Video_Completes,Optimization_Goal,Age_Target,Audience_Segment",
		"2023-01-01,instagram,Instagram BTS Moms,IG-BTS-1,Boston,MA,20.00,USD,300,3,100,80,60,40,20,conversions,25-44,moms",
	),
	"sBelles_paid_pinterest_part1_schema_drift.csv": lines(
		"date,channel,campaign_name,campaign_id,dma_name,state,spend,impressions,link_clicks,"+
			"video_views,video_75pct,video_completes,optimization_goal",
		"2023-01-03,pinterest,Pinterest Always On,PN-AO-1,Atlanta,GA,30.33,900,9,0,0,0,awareness",
	),
	"sBelles_paid_tiktok_part2_schema_drift.csv": lines(
		"date,channel,campaign_name,campaign_id,dma_name,state,spend,impressions,clicks,"+
			"views,video_25pct,video_50pct,video_75pct,video_completes,age_target,audience_segment",
		"2023-01-01,tiktok,TikTok Teen Trends,TT-TT-1,Boston,MA,5.00,100,1,90,70,50,30,10,13-17,teens",
		"2023-01-02,tiktok,TikTok Teen Trends,TT-TT-1,Boston,MA,5.01,110,2,95,75,55,35,15,13-17,teens",
	),

	"sBelles_web_traffic_2023_Q3_Q4.csv": lines(
		"event_datetime,session_id,user_id,traffic_source,traffic_medium,campaign,device_category,dma_name,state",
		"2023-12-05 10:00:00,s1,u1,google,cpc,BTS 2023,mobile,Atlanta,GA",
		"2023-12-05 10:05:00,s1,u1,google,cpc,BTS 2023,mobile,Atlanta,GA",
		"2023-12-05 11:00:00,s2,u2,google,cpc,BTS 2023,mobile,Atlanta,GA",
	),
	"sBelles_web_traffic_2024_Q1.csv": lines(
		"event_datetime,session_id,user_id,traffic_source,traffic_medium,campaign,device_category,dma_name,state",
		"2023-12-05 10:00:00,s1,u1,google,cpc,BTS 2023,mobile,Atlanta,GA",
		"2024-01-10 09:00:00,s3,u3,direct,(none),None,desktop,Boston,MA",
	),

	"sBelles_transactions_2023_Q1_Q2.csv": lines(
		"order_id,order_datetime,dma_name,state,product_category,size,promo_flag,quantity,unit_price,discount_per_unit,unit_cost,line_revenue",
		"O1,2023-03-01 12:00:00,Atlanta,GA,tops,M,False,2,25.00,5.00,10.00,40.00",
		"O1,2023-03-01 12:00:00,Atlanta,GA,tops,M,False,1,30.00,0.00,12.00,30.00",
		"O2,2023-03-01 15:30:00,Atlanta,GA,tops,M,False,1,25.00,0.00,10.00,-25.00",
		"O3,2023-03-02 09:00:00,Boston,MA,dresses,S,True,1,0.00,0.00,0.00,0.00",
	),

	"sBelles_tiktok_owned_2023.csv": lines(
		"date,post_id,followers,impressions,video_views,video_completes,likes,comments,shares,clicks,saves",
		"2023-05-01,p1,1000,100,50,10,5,1,1,2,0",
		"2023-05-01,p2,1010,200,80,20,7,2,0,1,1",
	),
	"sBelles_tiktok_owned_2024.csv": lines(
		"date,post_id,followers,impressions,video_views,video_completes,likes,comments,shares,clicks,saves",
		"2024-02-01,p3,1500,300,120,30,9,3,2,4,2",
	),

	"sBelles_podcast_mentions_2023_2024_part1.csv": lines(
		"mention_datetime,episode_release_date,podcast_name,episode_title,host_name,mentions_brand,mentions_founder,sentiment,estimated_impressions,episode_rating",
		"2023-06-01 08:00:00,2023-05-30,Peach State Parenting,Ep 12,Jane Host,1,0,positive,1000,4.5",
		"2023-06-01 09:00:00,2023-05-30,Peach State Parenting,Ep 12,Jane Host,0,1,neutral,500,4.5",
	),
	"sBelles_podcast_mentions_2023_2024_part2.csv": lines(
		"mention_datetime,episode_release_date,podcast_name,episode_title,host_name,mentions_brand,mentions_founder,sentiment,estimated_impressions,episode_rating",
		"2023-06-03 20:00:00,2023-06-02,Style Talk,Ep 3,Sam Host,1,1,positive,2500,",
	),

	"sBelles_ooh_airport_weekly.csv": lines(
		"week_start_date,airport_code,airport_name,format,audience_segment,spend,impressions,placements",
		"2023-01-02,ATL,Hartsfield-Jackson Atlanta International Airport,digital,business,1000.00,70000,4",
		"2023-01-02,ZZZ,Unlisted Field,static,leisure,100.00,10,1",
	),
}

// AirportLookupFixture is a reference lookup that covers ATL and BOS only.
var AirportLookupFixture = lines(
	"iata_code,name,municipality,state,iso_country",
	"ATL,Hartsfield-Jackson Atlanta International Airport,Atlanta,GA,US",
	"BOS,Boston Logan International Airport,Boston,MA,US",
)

// WriteRawFixtures writes RawFixtures into dataDir and the airport lookup
// into refDir.
func WriteRawFixtures(t testing.TB, dataDir, refDir string) {
	t.Helper()
	for name, body := range RawFixtures {
		WriteFile(t, filepath.Join(dataDir, name), body)
	}
	WriteFile(t, filepath.Join(refDir, "airport_lookup.csv"), AirportLookupFixture)
}

// WriteFile writes body to path, creating parent directories.
func WriteFile(t testing.TB, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}
