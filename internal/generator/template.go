package generator

import "html/template"

var mapTemplate = template.Must(template.New("map").Funcs(template.FuncMap{
	"toJSON": toJSON,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
   <meta charset="UTF-8"/>
   <meta name="viewport" content="width=device-width, initial-scale=1.0"/>
   <meta name="generated" content="{{ .GeneratedAt }}"/>
   <title>{{ .Title }}</title>
   <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css" />
   <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
   {{- if .Clusters }}
   <link rel="stylesheet" href="https://unpkg.com/leaflet.markercluster@1.5.3/dist/MarkerCluster.css" />
   <link rel="stylesheet" href="https://unpkg.com/leaflet.markercluster@1.5.3/dist/MarkerCluster.Default.css" />
   <script src="https://unpkg.com/leaflet.markercluster@1.5.3/dist/leaflet.markercluster.js"></script>
   {{- end }}
   <style>
      html, body { height: 100%; margin: 0; padding: 0; }
      #map { position: absolute; top: 0; bottom: 0; left: 0; right: 0; }
      .marker-count {
         background: rgba(255, 255, 255, 0.85);
         padding: 4px 8px;
         border-radius: 4px;
         font: 12px Arial, sans-serif;
      }
   </style>
</head>
<body>
   <div id="map"></div>
   <script>
      const markers = {{ toJSON .Markers }};
      const clusters = {{ toJSON .Clusters }};

      const map = L.map('map').setView([{{ .Center.Lat }}, {{ .Center.Lng }}], {{ .Zoom }});

      L.tileLayer({{ .Tiles.URL }}, {
          attribution: {{ .Tiles.Attribution }},
          maxZoom: {{ .Tiles.MaxZoom }}
      }).addTo(map);

      // Popup text is set via textContent so labels are never parsed as HTML.
      function addMarker(layer, m) {
          const marker = L.marker([m.lat, m.lng]);
          const popup = document.createElement('div');
          popup.textContent = m.popup;
          marker.bindPopup(popup);
          marker.addTo(layer);
      }

      markers.forEach(m => addMarker(map, m));

      clusters.forEach(group => {
          const cluster = L.markerClusterGroup();
          group.forEach(m => addMarker(cluster, m));
          cluster.addTo(map);
      });

      const MarkerCount = L.Control.extend({
          onAdd: function() {
              const div = L.DomUtil.create('div', 'marker-count');
              div.textContent = {{ .MarkerCount }} + ' markers';
              return div;
          }
      });
      new MarkerCount({ position: 'bottomleft' }).addTo(map);
   </script>
</body>
</html>
`))
